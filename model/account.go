package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountTypeChecking = "checking"
)

// Account holds one balance record per user. The balance is only ever
// mutated through the ledger's atomic units and never goes below zero.
type Account struct {
	ID          int64                  `json:"-"`
	AccountID   string                 `json:"account_id"`
	UserID      string                 `json:"user_id"`
	Number      string                 `json:"number"`
	Balance     decimal.Decimal        `json:"balance"`
	AccountType string                 `json:"account_type"`
	Active      bool                   `json:"active"`
	CreatedAt   time.Time              `json:"created_at"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// NewAccount builds a checking account for a user with a fresh account id
// and a random 6-digit number.
func NewAccount(userID string) *Account {
	return &Account{
		AccountID:   GenerateUUIDWithSuffix("acc"),
		UserID:      userID,
		Number:      GenerateAccountNumber(),
		Balance:     decimal.Zero,
		AccountType: AccountTypeChecking,
		Active:      true,
		CreatedAt:   time.Now(),
	}
}
