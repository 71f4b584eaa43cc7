package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bancore/bancore"
)

// GatewayWebhook receives asynchronous payment-status events. The event is
// queued for reconciliation and always acknowledged with 200: surfacing a
// failure here would only make the gateway redeliver a poison event.
func (a Api) GatewayWebhook(c *gin.Context) {
	var event bancore.GatewayEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.Warnf("malformed gateway webhook: %v", err)
		c.JSON(http.StatusOK, gin.H{"message": "webhook received"})
		return
	}

	if err := a.bancore.EnqueueGatewayEvent(c.Request.Context(), event); err != nil {
		logrus.Errorf("failed to enqueue gateway event %s: %v", event.PaymentID(), err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "webhook received"})
}
