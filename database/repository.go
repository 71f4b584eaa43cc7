package database

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bancore/bancore/model"
)

// IDataSource is the storage contract consumed by the ledger services.
// Every method that touches more than one row runs inside a single database
// transaction with commit/abort semantics.
type IDataSource interface {
	account
	transaction
}

type account interface {
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccountByUserID(ctx context.Context, userID string) (*model.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*model.Account, error)
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
}

type transaction interface {
	RecordDeposit(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	RecordWithdrawal(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	RecordTransfer(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status string, metadata map[string]interface{}) (*model.Transaction, error)
	UpdateTransactionMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*model.Transaction, error)
	GetTransactionsForAccount(ctx context.Context, accountID string) ([]model.Transaction, error)
}

// creditDelta is a small helper type used by the status-transition logic to
// express the balance side effect of a terminal transition.
type creditDelta struct {
	accountID string
	amount    decimal.Decimal
}
