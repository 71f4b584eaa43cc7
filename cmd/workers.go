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
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/bancore/bancore"
	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/internal/apierror"
	redis_db "github.com/bancore/bancore/internal/redis-db"
)

// reconcilePayment settles a pending transaction from a queued gateway
// event. Transient gateway failures are returned so asynq retries the task;
// a payment with no ledger reference is dropped for good.
func (b *bancoreInstance) reconcilePayment(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("bancore.reconciliation.worker").Start(ctx, "Reconcile Payment From Redis Queue")
	defer span.End()

	var task bancore.ReconciliationTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.bancore.ReconcileGatewayPayment(ctx, task.GatewayPaymentID); err != nil {
		if apierror.Is(err, apierror.ErrNotFound) || apierror.Is(err, apierror.ErrInvalidInput) {
			logrus.Errorf("Dropping reconciliation for %s: %v", task.GatewayPaymentID, err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logrus.Infof("Reconciliation for %s pushed back for retry due to error: %v", task.GatewayPaymentID, err)
		return err
	}

	log.Println(" [*] Payment Reconciled", task.GatewayPaymentID)
	return nil
}

func initializeQueues(conf *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[conf.Queue.ReconciliationQueue] = 3
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

// workerCommands defines the "workers" command to start the reconciliation
// worker process.
func workerCommands(b *bancoreInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start bancore workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			queues := initializeQueues(conf)
			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(conf.Queue.ReconciliationQueue, b.reconcilePayment)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run worker server: %v", err)
			}
		},
	}

	return cmd
}
