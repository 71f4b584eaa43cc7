package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/bancore/bancore/api/model"
)

func (a Api) PayWithBalance(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	var payment model2.PayBalance
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := payment.ValidatePayBalance(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.bancore.PayWithBalance(c.Request.Context(), userID, payment.Amount, payment.Description, c.GetHeader(IdempotencyHeader))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (a Api) ProcessExternalPayment(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	var payment model2.ProcessPayment
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := payment.ValidateProcessPayment(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	intent, err := a.bancore.ProcessExternalPayment(c.Request.Context(), userID, payment.Amount, payment.Method, payment.Description, payment.PayerEmail, c.GetHeader(IdempotencyHeader))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, intent)
}

// Gateway redirect callbacks. The gateway appends the correlation and
// outcome as query parameters when sending the payer back.

func (a Api) RedirectSuccess(c *gin.Context) {
	a.reconcileRedirect(c, "approved")
}

func (a Api) RedirectFailure(c *gin.Context) {
	a.reconcileRedirect(c, "rejected")
}

func (a Api) RedirectPending(c *gin.Context) {
	a.reconcileRedirect(c, "pending")
}

func (a Api) reconcileRedirect(c *gin.Context, fallbackStatus string) {
	transactionID := c.Query("external_reference")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_reference is required"})
		return
	}
	status := c.Query("status")
	if status == "" {
		status = fallbackStatus
	}

	a.bancore.ReconcileRedirect(c.Request.Context(), transactionID, c.Query("payment_id"), status)
	c.JSON(http.StatusOK, gin.H{"message": "redirect received", "transaction_id": transactionID})
}
