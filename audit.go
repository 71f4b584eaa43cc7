package bancore

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/internal/notification"
	"github.com/bancore/bancore/internal/request"
	"github.com/bancore/bancore/model"
)

// AuditEvent is a fire-and-forget activity record handed to the external
// audit sink after a successful state change.
type AuditEvent struct {
	UserID        string          `json:"user_id"`
	Action        string          `json:"action"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

type Auditor interface {
	Record(ctx context.Context, event AuditEvent) error
}

// NewAuditor returns the HTTP audit sink, or a no-op when no audit URL is
// configured.
func NewAuditor(conf config.AuditConfig) Auditor {
	if conf.Url == "" {
		return noopAuditor{}
	}
	return &httpAuditor{url: conf.Url, headers: conf.Headers}
}

type httpAuditor struct {
	url     string
	headers map[string]string
}

func (a *httpAuditor) Record(ctx context.Context, event AuditEvent) error {
	payload, err := request.ToJsonReq(&event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.url, payload)
	if err != nil {
		return err
	}
	for key, value := range a.headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	_, err = request.CallWithTimeout(req, &response, 10*time.Second)
	return err
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, AuditEvent) error {
	return nil
}

// postTransactionActions emits the audit record for a committed financial
// operation. Audit failure is reported to the operator channel and never
// reverses the operation.
func (b *Bancore) postTransactionActions(_ context.Context, userID, action string, transaction *model.Transaction) {
	go func() {
		event := AuditEvent{
			UserID:        userID,
			Action:        action,
			Amount:        transaction.Amount,
			TransactionID: transaction.TransactionID,
			RecordedAt:    time.Now(),
		}
		if err := b.auditor.Record(context.Background(), event); err != nil {
			notification.NotifyError(err)
		}
	}()
}
