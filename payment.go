/*
Copyright 2024 Bancore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bancore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/gateway"
	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/internal/notification"
	"github.com/bancore/bancore/model"
)

// Supported external payment methods.
const (
	MethodHostedCheckout = "hosted_checkout"
	MethodPix            = "pix"
)

// PaymentIntent is what the caller gets back for an external payment: the
// pending ledger transaction plus whatever the gateway needs the payer to
// act on, a redirect URL for hosted checkout or a Pix code.
type PaymentIntent struct {
	TransactionID string     `json:"transaction_id"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	RedirectURL   string     `json:"redirect_url,omitempty"`
	SandboxURL    string     `json:"sandbox_url,omitempty"`
	Code          string     `json:"code,omitempty"`
	CodeImage     string     `json:"code_image,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// PayWithBalance settles a payment from the account balance. It is a
// completed debit recorded as a payment, subject to the same
// insufficient-funds rule as a withdrawal.
func (b *Bancore) PayWithBalance(ctx context.Context, userID string, amount decimal.Decimal, description, idempotencyKey string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "PayWithBalance")
	defer span.End()

	return b.recordOutflow(ctx, userID, amount, description, idempotencyKey, model.TypePayment, "payment")
}

// ProcessExternalPayment opens a pending deposit and registers the charge
// with the gateway. When the gateway call fails the pending transaction is
// marked failed so it cannot be completed later.
func (b *Bancore) ProcessExternalPayment(ctx context.Context, userID string, amount decimal.Decimal, method, description, payerEmail, idempotencyKey string) (*PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "ProcessExternalPayment")
	defer span.End()

	switch method {
	case MethodHostedCheckout:
		return b.startHostedCheckout(ctx, userID, amount, description, idempotencyKey)
	case MethodPix:
		return b.startPixPayment(ctx, userID, amount, description, payerEmail, idempotencyKey)
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Unsupported payment method: "+method, nil)
	}
}

func (b *Bancore) startHostedCheckout(ctx context.Context, userID string, amount decimal.Decimal, description, idempotencyKey string) (*PaymentIntent, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if description == "" {
		description = "Account top-up"
	}
	transaction, err := b.Deposit(ctx, userID, amount, description, idempotencyKey, model.StatusPending)
	if err != nil {
		return nil, err
	}

	preference, err := b.gateway.CreateCheckoutPreference(ctx, gateway.PreferenceRequest{
		Items:             []gateway.Item{{Title: description, Quantity: 1, UnitPrice: amount}},
		ExternalReference: transaction.TransactionID,
		BackURLs: gateway.BackURLs{
			Success: conf.Gateway.SuccessURL,
			Failure: conf.Gateway.FailureURL,
			Pending: conf.Gateway.PendingURL,
		},
	})
	if err != nil {
		b.failPendingPayment(ctx, transaction.TransactionID, err)
		return nil, apierror.NewAPIError(apierror.ErrGateway, "Payment gateway rejected the checkout request", err.Error())
	}

	if _, err := b.datasource.UpdateTransactionMetadata(ctx, transaction.TransactionID, map[string]interface{}{
		"gateway_preference_id": preference.ID,
		"payment_method":        MethodHostedCheckout,
	}); err != nil {
		logrus.Errorf("failed to tag transaction %s with preference id: %v", transaction.TransactionID, err)
	}

	return &PaymentIntent{
		TransactionID: transaction.TransactionID,
		Method:        MethodHostedCheckout,
		Status:        model.StatusPending,
		RedirectURL:   preference.InitPoint,
		SandboxURL:    preference.SandboxInitPoint,
	}, nil
}

func (b *Bancore) startPixPayment(ctx context.Context, userID string, amount decimal.Decimal, description, payerEmail, idempotencyKey string) (*PaymentIntent, error) {
	if payerEmail == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Payer email is required for pix payments", nil)
	}

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if description == "" {
		description = "Account top-up"
	}
	transaction, err := b.Deposit(ctx, userID, amount, description, idempotencyKey, model.StatusPending)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(time.Duration(conf.Gateway.PixExpiryMinute) * time.Minute)
	payment, err := b.gateway.CreateInstantPayment(ctx, gateway.InstantPaymentRequest{
		Amount:            amount,
		Description:       description,
		PayerEmail:        payerEmail,
		ExternalReference: transaction.TransactionID,
		ExpiresAt:         expiresAt,
	})
	if err != nil {
		b.failPendingPayment(ctx, transaction.TransactionID, err)
		return nil, apierror.NewAPIError(apierror.ErrGateway, "Payment gateway rejected the pix charge", err.Error())
	}

	if _, err := b.datasource.UpdateTransactionMetadata(ctx, transaction.TransactionID, map[string]interface{}{
		"gateway_payment_id": payment.ID,
		"payment_method":     MethodPix,
		"payer_email":        payerEmail,
	}); err != nil {
		logrus.Errorf("failed to tag transaction %s with gateway payment id: %v", transaction.TransactionID, err)
	}

	return &PaymentIntent{
		TransactionID: transaction.TransactionID,
		Method:        MethodPix,
		Status:        model.StatusPending,
		Code:          payment.Code,
		CodeImage:     payment.CodeImage,
		ExpiresAt:     &expiresAt,
	}, nil
}

// failPendingPayment closes out a pending transaction whose gateway leg
// never materialized.
func (b *Bancore) failPendingPayment(ctx context.Context, transactionID string, cause error) {
	metadata := map[string]interface{}{"gateway_error": cause.Error()}
	if _, err := b.datasource.UpdateTransactionStatus(ctx, transactionID, model.StatusFailed, metadata); err != nil {
		logrus.Errorf("failed to mark transaction %s failed after gateway error: %v", transactionID, err)
		notification.NotifyError(err)
	}
}

// ReconcileRedirect applies the status the payer carried back from the
// gateway's redirect. Approved completes the transaction, anything else
// fails it. Errors are logged, not returned: the webhook remains the
// authoritative settlement path and a terminal transaction absorbs the
// later notification as a no-op.
func (b *Bancore) ReconcileRedirect(ctx context.Context, transactionID, gatewayPaymentID, gatewayStatus string) {
	ctx, span := tracer.Start(ctx, "ReconcileRedirect")
	defer span.End()

	status := model.StatusFailed
	if gatewayStatus == "approved" {
		status = model.StatusCompleted
	}
	metadata := map[string]interface{}{
		"gateway_status": gatewayStatus,
		"reconciled_via": "redirect",
	}
	if gatewayPaymentID != "" {
		metadata["gateway_payment_id"] = gatewayPaymentID
	}

	if _, err := b.UpdateTransactionStatus(ctx, transactionID, status, metadata); err != nil {
		logrus.Errorf("redirect reconciliation for %s failed: %v", transactionID, err)
	}
}
