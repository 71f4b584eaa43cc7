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
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/database"
	"github.com/bancore/bancore/gateway"
	redis_db "github.com/bancore/bancore/internal/redis-db"
)

// Bancore is the ledger core service. It owns account balances, the
// transaction ledger, payment orchestration against the external gateway,
// and webhook reconciliation.
type Bancore struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	queue      *Queue
	gateway    gateway.Client
	auditor    Auditor
}

// NewBancore initializes the service with the provided datasource. Redis,
// the reconciliation queue, the gateway client and the audit sink are built
// from configuration.
func NewBancore(db database.IDataSource) (*Bancore, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	gatewayClient := gateway.NewHTTPClient(configuration.Gateway)
	auditor := NewAuditor(configuration.Audit)

	return &Bancore{
		datasource: db,
		redis:      redisClient.Client(),
		queue:      newQueue,
		gateway:    gatewayClient,
		auditor:    auditor,
	}, nil
}
