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

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/bancore/bancore/gateway"
	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/model"
)

// GatewayEvent is the webhook notification body. The gateway sends the
// payment id either at the top level or nested under data, depending on
// the event family.
type GatewayEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// PaymentID extracts the gateway payment id from either shape.
func (e GatewayEvent) PaymentID() string {
	if e.Data.ID != "" {
		return e.Data.ID
	}
	return e.ID
}

// EnqueueGatewayEvent queues the event for asynchronous reconciliation.
// The caller acknowledges the webhook once this returns.
func (b *Bancore) EnqueueGatewayEvent(ctx context.Context, event GatewayEvent) error {
	paymentID := event.PaymentID()
	if paymentID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Webhook event carries no payment id", nil)
	}
	return b.queue.EnqueueReconciliation(ctx, paymentID)
}

// MapGatewayStatus maps a gateway payment status onto a ledger status.
// Non-terminal gateway states (pending, in_process, authorized) map to
// nothing; the transaction stays pending until a later notification.
func MapGatewayStatus(gatewayStatus string) (string, bool) {
	switch gatewayStatus {
	case "approved":
		return model.StatusCompleted, true
	case "rejected", "cancelled", "refunded", "charged_back", "expired":
		return model.StatusFailed, true
	default:
		return "", false
	}
}

// ReconcileGatewayPayment settles a ledger transaction from the gateway's
// canonical payment record. The webhook payload is never trusted; the
// status is always re-fetched, with retry on transient gateway failures.
func (b *Bancore) ReconcileGatewayPayment(ctx context.Context, gatewayPaymentID string) error {
	ctx, span := tracer.Start(ctx, "ReconcileGatewayPayment")
	defer span.End()

	var status *gateway.PaymentStatus
	fetch := func() error {
		fetched, err := b.gateway.GetPaymentStatus(ctx, gatewayPaymentID)
		if err != nil {
			return err
		}
		status = fetched
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return apierror.NewAPIError(apierror.ErrGateway, "Could not fetch payment status from gateway", err.Error())
	}

	if status.ExternalReference == "" {
		return apierror.NewAPIError(apierror.ErrNotFound, "Gateway payment carries no ledger reference", gatewayPaymentID)
	}

	metadata := map[string]interface{}{
		"gateway_payment_id": status.ID,
		"gateway_status":     status.Status,
		"reconciled_via":     "webhook",
		"reconciled_at":      time.Now().Format(time.RFC3339),
	}
	if status.StatusDetail != "" {
		metadata["gateway_status_detail"] = status.StatusDetail
	}
	if status.PaymentMethod != "" {
		metadata["payment_method"] = status.PaymentMethod
	}

	mapped, terminal := MapGatewayStatus(status.Status)
	if !terminal {
		logrus.Infof("payment %s still %s, annotating transaction %s", gatewayPaymentID, status.Status, status.ExternalReference)
		_, err := b.datasource.UpdateTransactionMetadata(ctx, status.ExternalReference, metadata)
		return err
	}

	_, err := b.UpdateTransactionStatus(ctx, status.ExternalReference, mapped, metadata)
	return err
}
