package model

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number := GenerateAccountNumber()
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), number)
		seen[number] = true
	}
	// 100 draws from a 900k space should not all collide
	assert.Greater(t, len(seen), 1)
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("txn")
	assert.Regexp(t, regexp.MustCompile(`^txn_[0-9a-f-]{36}$`), id)
}

func TestNewAccountDefaults(t *testing.T) {
	account := NewAccount("usr_123")
	assert.Equal(t, "usr_123", account.UserID)
	assert.Equal(t, AccountTypeChecking, account.AccountType)
	assert.True(t, account.Active)
	assert.True(t, account.Balance.IsZero())
	assert.NotEmpty(t, account.AccountID)
	assert.Len(t, account.Number, 6)
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		txn     Transaction
		wantErr string
	}{
		{
			name: "valid deposit",
			txn:  Transaction{Amount: decimal.NewFromInt(100), Type: TypeDeposit, Status: StatusCompleted, Destination: "acc_1"},
		},
		{
			name:    "zero amount",
			txn:     Transaction{Amount: decimal.Zero, Type: TypeDeposit, Status: StatusCompleted, Destination: "acc_1"},
			wantErr: "greater than zero",
		},
		{
			name:    "negative amount",
			txn:     Transaction{Amount: decimal.NewFromInt(-5), Type: TypeDeposit, Status: StatusCompleted, Destination: "acc_1"},
			wantErr: "greater than zero",
		},
		{
			name:    "deposit without destination",
			txn:     Transaction{Amount: decimal.NewFromInt(10), Type: TypeDeposit, Status: StatusPending},
			wantErr: "destination",
		},
		{
			name:    "withdrawal without source",
			txn:     Transaction{Amount: decimal.NewFromInt(10), Type: TypeWithdrawal, Status: StatusCompleted},
			wantErr: "source",
		},
		{
			name:    "transfer missing destination",
			txn:     Transaction{Amount: decimal.NewFromInt(10), Type: TypeTransfer, Status: StatusCompleted, Source: "acc_1"},
			wantErr: "both source and destination",
		},
		{
			name:    "unknown type",
			txn:     Transaction{Amount: decimal.NewFromInt(10), Type: "chargeback", Status: StatusCompleted, Source: "acc_1"},
			wantErr: "unknown transaction type",
		},
		{
			name:    "unknown status",
			txn:     Transaction{Amount: decimal.NewFromInt(10), Type: TypeDeposit, Status: "queued", Destination: "acc_1"},
			wantErr: "unknown transaction status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTransactionTerminalAndMerge(t *testing.T) {
	txn := Transaction{Status: StatusPending}
	assert.False(t, txn.IsTerminal())

	txn.Status = StatusCompleted
	assert.True(t, txn.IsTerminal())

	txn.MergeMetaData(map[string]interface{}{"gateway_status": "approved"})
	txn.MergeMetaData(map[string]interface{}{"gateway_status": "approved", "payer_email": "a@b.c"})
	assert.Equal(t, "approved", txn.MetaData["gateway_status"])
	assert.Equal(t, "a@b.c", txn.MetaData["payer_email"])
	assert.True(t, txn.IsTerminal())
}
