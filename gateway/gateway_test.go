package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bancore/bancore/config"
)

func newTestClient() *HTTPClient {
	return NewHTTPClient(config.GatewayConfig{
		BaseURL:     "https://api.gateway.test",
		AccessToken: "test-token",
		TimeoutSec:  5,
	})
}

func TestCreateCheckoutPreference(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.gateway.test/checkout/preferences",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(201, map[string]interface{}{
				"id":                 "pref_123",
				"init_point":         "https://gateway.test/checkout/pref_123",
				"sandbox_init_point": "https://sandbox.gateway.test/checkout/pref_123",
			})
		})

	preference, err := client.CreateCheckoutPreference(context.Background(), PreferenceRequest{
		Items:             []Item{{Title: "Account top-up", Quantity: 1, UnitPrice: decimal.NewFromFloat(200)}},
		ExternalReference: "txn_abc",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pref_123", preference.ID)
	assert.Equal(t, "https://gateway.test/checkout/pref_123", preference.InitPoint)
}

func TestCreateInstantPayment(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	expiry := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	httpmock.RegisterResponder("POST", "https://api.gateway.test/v1/payments",
		httpmock.NewJsonResponderOrPanic(201, map[string]interface{}{
			"id":                 "pay_55",
			"qr_code":            "00020126330014br.gov.bcb.pix",
			"qr_code_base64":     "aGVsbG8=",
			"date_of_expiration": expiry,
		}))

	payment, err := client.CreateInstantPayment(context.Background(), InstantPaymentRequest{
		Amount:            decimal.NewFromFloat(99.90),
		Description:       "wallet top-up",
		PayerEmail:        "payer@example.com",
		ExternalReference: "txn_def",
		ExpiresAt:         expiry,
	})
	assert.NoError(t, err)
	assert.Equal(t, "pay_55", payment.ID)
	assert.Equal(t, "00020126330014br.gov.bcb.pix", payment.Code)
	assert.True(t, expiry.Equal(payment.ExpiresAt))
}

func TestGetPaymentStatus(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.gateway.test/v1/payments/pay_55",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"id":                 "pay_55",
			"status":             "approved",
			"external_reference": "txn_def",
			"payer_email":        "payer@example.com",
			"payment_method_id":  "pix",
		}))

	status, err := client.GetPaymentStatus(context.Background(), "pay_55")
	assert.NoError(t, err)
	assert.Equal(t, "approved", status.Status)
	assert.Equal(t, "txn_def", status.ExternalReference)
}

func TestGatewayErrorStatus(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.gateway.test/v1/payments/missing",
		httpmock.NewStringResponder(404, `{"message":"payment not found"}`))

	_, err := client.GetPaymentStatus(context.Background(), "missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
