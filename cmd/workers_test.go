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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/bancore/bancore"
	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/database/mocks"
)

func newTestInstance(t *testing.T) (*bancoreInstance, *mocks.MockDataSource) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis:   config.RedisConfig{Dns: mr.Addr()},
		Queue:   config.QueueConfig{ReconciliationQueue: "gateway_reconciliation", MaxRetryAttempts: 1},
		Gateway: config.GatewayConfig{BaseURL: "https://api.gateway.test", TimeoutSec: 5, PixExpiryMinute: 30},
	})

	datasource := new(mocks.MockDataSource)
	service, err := bancore.NewBancore(datasource)
	if err != nil {
		t.Fatalf("Failed to setup service: %v", err)
	}
	return &bancoreInstance{bancore: service}, datasource
}

func reconciliationTask(t *testing.T, gatewayPaymentID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(bancore.ReconciliationTask{GatewayPaymentID: gatewayPaymentID})
	if err != nil {
		t.Fatalf("marshalling task payload: %v", err)
	}
	return asynq.NewTask("gateway_reconciliation", payload)
}

func TestReconcilePaymentDropsOrphanedPayment(t *testing.T) {
	instance, _ := newTestInstance(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", "https://api.gateway.test/v1/payments/pay_1",
		httpmock.NewStringResponder(200, `{"id":"pay_1","status":"approved","external_reference":""}`))

	// A payment the gateway cannot tie back to a ledger transaction will
	// never reconcile; retrying it is pointless.
	err := instance.reconcilePayment(context.Background(), reconciliationTask(t, "pay_1"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestReconcilePaymentRetriesOnGatewayFailure(t *testing.T) {
	instance, _ := newTestInstance(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", "https://api.gateway.test/v1/payments/pay_2",
		httpmock.NewStringResponder(503, `{"message":"unavailable"}`))

	err := instance.reconcilePayment(context.Background(), reconciliationTask(t, "pay_2"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}
