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

// Package gateway talks to the external payment provider. The payment
// orchestrator depends on the Client interface only, which keeps the
// provider swappable and the orchestrator testable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/bancore/bancore/config"
)

type Item struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceRequest struct {
	Items             []Item   `json:"items"`
	ExternalReference string   `json:"external_reference"`
	BackURLs          BackURLs `json:"back_urls"`
	NotificationURL   string   `json:"notification_url,omitempty"`
}

// Preference is a hosted-checkout session. InitPoint is the redirect URL
// handed back to the caller.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type InstantPaymentRequest struct {
	Amount            decimal.Decimal `json:"transaction_amount"`
	Description       string          `json:"description"`
	PayerEmail        string          `json:"payer_email"`
	ExternalReference string          `json:"external_reference"`
	ExpiresAt         time.Time       `json:"date_of_expiration"`
}

// InstantPayment is a Pix charge. Code is the copy-paste string, CodeImage
// the base64 QR image.
type InstantPayment struct {
	ID        string    `json:"id"`
	Code      string    `json:"qr_code"`
	CodeImage string    `json:"qr_code_base64"`
	ExpiresAt time.Time `json:"date_of_expiration"`
}

// PaymentStatus is the gateway's authoritative view of a payment. Webhook
// payloads are never trusted on their own; reconciliation always fetches
// this record.
type PaymentStatus struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
	PayerEmail        string `json:"payer_email"`
	PaymentMethod     string `json:"payment_method_id"`
}

type Client interface {
	CreateCheckoutPreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	CreateInstantPayment(ctx context.Context, req InstantPaymentRequest) (*InstantPayment, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error)
}

type HTTPClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewHTTPClient builds a gateway client from configuration. Every call is
// bounded by the configured timeout.
func NewHTTPClient(conf config.GatewayConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:     conf.BaseURL,
		accessToken: conf.AccessToken,
		client:      &http.Client{Timeout: time.Duration(conf.TimeoutSec) * time.Second},
	}
}

func (g *HTTPClient) CreateCheckoutPreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var preference Preference
	if err := g.call(ctx, http.MethodPost, "/checkout/preferences", req, &preference); err != nil {
		return nil, errors.Wrap(err, "creating checkout preference")
	}
	return &preference, nil
}

func (g *HTTPClient) CreateInstantPayment(ctx context.Context, req InstantPaymentRequest) (*InstantPayment, error) {
	var payment InstantPayment
	if err := g.call(ctx, http.MethodPost, "/v1/payments", req, &payment); err != nil {
		return nil, errors.Wrap(err, "creating instant payment")
	}
	return &payment, nil
}

func (g *HTTPClient) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	var status PaymentStatus
	if err := g.call(ctx, http.MethodGet, fmt.Sprintf("/v1/payments/%s", paymentID), nil, &status); err != nil {
		return nil, errors.Wrapf(err, "fetching payment %s", paymentID)
	}
	return &status, nil
}

func (g *HTTPClient) call(ctx context.Context, method, path string, payload, response interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	return json.NewDecoder(resp.Body).Decode(response)
}
