package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypeTransfer   = "transfer"
	TypePayment    = "payment"
)

// Transaction is an immutable ledger record. Only Status and MetaData may
// change after creation, and only through the reconciliation path.
type Transaction struct {
	ID             int64                  `json:"-"`
	TransactionID  string                 `json:"id"`
	Source         string                 `json:"source,omitempty"`
	Destination    string                 `json:"destination,omitempty"`
	Amount         decimal.Decimal        `json:"amount"`
	Type           string                 `json:"type"`
	Status         string                 `json:"status"`
	Description    string                 `json:"description,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// IsTerminal reports whether the transaction has reached a sticky final
// status. A terminal transaction never changes status again.
func (transaction *Transaction) IsTerminal() bool {
	return transaction.Status == StatusCompleted || transaction.Status == StatusFailed
}

// MergeMetaData folds patch into the transaction metadata. Repeated gateway
// pings merge repeatedly without changing a terminal status.
func (transaction *Transaction) MergeMetaData(patch map[string]interface{}) {
	if len(patch) == 0 {
		return
	}
	if transaction.MetaData == nil {
		transaction.MetaData = make(map[string]interface{})
	}
	for k, v := range patch {
		transaction.MetaData[k] = v
	}
}

// Validate enforces the structural invariants of a ledger record: positive
// amount, a known type and status, and the source/destination shape each
// type requires.
func (transaction *Transaction) Validate() error {
	if !transaction.Amount.IsPositive() {
		return errors.New("transaction amount must be greater than zero")
	}

	switch transaction.Status {
	case StatusPending, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("unknown transaction status %q", transaction.Status)
	}

	switch transaction.Type {
	case TypeDeposit:
		if transaction.Destination == "" {
			return errors.New("deposit requires a destination account")
		}
	case TypeWithdrawal, TypePayment:
		if transaction.Source == "" {
			return fmt.Errorf("%s requires a source account", transaction.Type)
		}
	case TypeTransfer:
		if transaction.Source == "" || transaction.Destination == "" {
			return errors.New("transfer requires both source and destination accounts")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", transaction.Type)
	}

	return nil
}
