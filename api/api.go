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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bancore/bancore"
	"github.com/bancore/bancore/api/middleware"
	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/internal/apierror"
)

// IdempotencyHeader carries the caller-supplied deduplication key for
// money-moving endpoints. Retrying a request with the same key returns the
// original transaction without mutating the balance again.
const IdempotencyHeader = "Idempotency-Key"

type Api struct {
	bancore *bancore.Bancore
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/account", a.CreateAccount)
	router.GET("/account/balance", a.GetBalance)

	router.POST("/transactions/deposit", a.RecordDeposit)
	router.POST("/transactions/withdraw", a.RecordWithdrawal)
	router.POST("/transactions/transfer", a.RecordTransfer)
	router.GET("/transactions/history", a.GetTransactionHistory)

	router.POST("/payment/pay-balance", a.PayWithBalance)
	router.POST("/payment/process-external", a.ProcessExternalPayment)
	router.GET("/payment/redirect-success", a.RedirectSuccess)
	router.GET("/payment/redirect-failure", a.RedirectFailure)
	router.GET("/payment/redirect-pending", a.RedirectPending)

	router.POST("/webhooks/gateway", a.GatewayWebhook)

	return a.router
}

func NewAPI(b *bancore.Bancore) (*Api, error) {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{bancore: b, router: r}, nil
}

// resolveUserID extracts the authenticated caller's identity. The core
// trusts an already-authenticated identity supplied upstream.
func resolveUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader(middleware.UserHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
		return "", false
	}
	return userID, true
}

func handleServiceError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}
