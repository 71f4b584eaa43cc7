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
	"encoding/json"
	"errors"
	"log"

	"github.com/hibiken/asynq"

	"github.com/bancore/bancore/config"
	redis_db "github.com/bancore/bancore/internal/redis-db"
)

// Queue hands gateway events to the reconciliation worker. Webhooks are
// acknowledged as soon as the task is durably enqueued.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// ReconciliationTask is the payload carried on the reconciliation queue.
// Only the gateway payment id travels; the worker fetches the canonical
// status from the gateway rather than trusting the webhook body.
type ReconciliationTask struct {
	GatewayPaymentID string `json:"gateway_payment_id"`
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueReconciliation queues a reconciliation task for a gateway payment.
// The task id is the payment id, so a re-delivered webhook collapses into
// the already-queued task instead of producing a duplicate.
func (q *Queue) EnqueueReconciliation(ctx context.Context, gatewayPaymentID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(ReconciliationTask{GatewayPaymentID: gatewayPaymentID})
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.TaskID(gatewayPaymentID),
		asynq.Queue(cfg.Queue.ReconciliationQueue),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.ReconciliationQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.Printf(" [*] Reconciliation for %s already queued", gatewayPaymentID)
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued reconciliation: %+v", gatewayPaymentID)
	return nil
}
