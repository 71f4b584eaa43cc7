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
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/mock"

	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/database/mocks"
	"github.com/bancore/bancore/gateway"
	redis_db "github.com/bancore/bancore/internal/redis-db"
)

// MockGatewayClient is a testify mock of gateway.Client.
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) CreateCheckoutPreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Preference), args.Error(1)
}

func (m *MockGatewayClient) CreateInstantPayment(ctx context.Context, req gateway.InstantPaymentRequest) (*gateway.InstantPayment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.InstantPayment), args.Error(1)
}

func (m *MockGatewayClient) GetPaymentStatus(ctx context.Context, paymentID string) (*gateway.PaymentStatus, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentStatus), args.Error(1)
}

// newTestBancore wires a Bancore against a mock datasource, a mock gateway
// and a miniredis instance for locks and the reconciliation queue.
func newTestBancore(t *testing.T) (*Bancore, *mocks.MockDataSource, *MockGatewayClient) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{ReconciliationQueue: "gateway_reconciliation", MaxRetryAttempts: 1},
		Gateway: config.GatewayConfig{
			BaseURL:         "https://api.gateway.test",
			AccessToken:     "test-token",
			TimeoutSec:      5,
			SuccessURL:      "https://bancore.test/payment/redirect-success",
			FailureURL:      "https://bancore.test/payment/redirect-failure",
			PendingURL:      "https://bancore.test/payment/redirect-pending",
			PixExpiryMinute: 30,
		},
	})
	conf, err := config.Fetch()
	if err != nil {
		t.Fatalf("fetching mock config: %s", err)
	}

	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", mr.Addr())})
	if err != nil {
		t.Fatalf("connecting to miniredis: %s", err)
	}

	datasource := new(mocks.MockDataSource)
	gatewayClient := new(MockGatewayClient)

	service := &Bancore{
		datasource: datasource,
		redis:      redisClient.Client(),
		queue:      NewQueue(conf),
		gateway:    gatewayClient,
		auditor:    noopAuditor{},
	}
	return service, datasource, gatewayClient
}
