package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/bancore/bancore/api/model"
)

func (a Api) RecordDeposit(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	var deposit model2.RecordDeposit
	if err := c.ShouldBindJSON(&deposit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := deposit.ValidateRecordDeposit(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.bancore.Deposit(c.Request.Context(), userID, deposit.Amount, deposit.Description, c.GetHeader(IdempotencyHeader), "")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (a Api) RecordWithdrawal(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	var withdrawal model2.RecordWithdrawal
	if err := c.ShouldBindJSON(&withdrawal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := withdrawal.ValidateRecordWithdrawal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.bancore.Withdraw(c.Request.Context(), userID, withdrawal.Amount, withdrawal.Description, c.GetHeader(IdempotencyHeader))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (a Api) RecordTransfer(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	var transfer model2.RecordTransfer
	if err := c.ShouldBindJSON(&transfer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := transfer.ValidateRecordTransfer(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := a.bancore.Transfer(c.Request.Context(), userID, transfer.DestinationNumber, transfer.Amount, transfer.Description, c.GetHeader(IdempotencyHeader))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (a Api) GetTransactionHistory(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	history, err := a.bancore.GetTransactionHistory(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
