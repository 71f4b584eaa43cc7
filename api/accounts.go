package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a Api) CreateAccount(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	account, err := a.bancore.CreateAccount(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (a Api) GetBalance(c *gin.Context) {
	userID, ok := resolveUserID(c)
	if !ok {
		return
	}

	account, err := a.bancore.GetBalance(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": account.AccountID,
		"number":     account.Number,
		"balance":    account.Balance,
	})
}
