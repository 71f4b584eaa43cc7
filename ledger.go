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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/bancore/bancore/internal/apierror"
	redlock "github.com/bancore/bancore/internal/lock"
	"github.com/bancore/bancore/model"

	"github.com/shopspring/decimal"
)

var tracer = otel.Tracer("bancore.ledger")

const (
	accountLockTimeout = 30 * time.Second
	accountLockWait    = 10 * time.Second
)

// Deposit credits a user's account. An empty status records an immediately
// completed deposit; StatusPending records the intent without moving money,
// which is how gateway-backed payments enter the ledger.
func (b *Bancore) Deposit(ctx context.Context, userID string, amount decimal.Decimal, description, idempotencyKey, status string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Deposit")
	defer span.End()

	if replayed, err := b.replayedTransaction(ctx, idempotencyKey); replayed != nil || err != nil {
		return replayed, err
	}

	if status == "" {
		status = model.StatusCompleted
	}

	account, err := b.datasource.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	transaction := &model.Transaction{
		TransactionID:  model.GenerateUUIDWithSuffix("txn"),
		Destination:    account.AccountID,
		Amount:         amount,
		Type:           model.TypeDeposit,
		Status:         status,
		Description:    description,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}
	if err := transaction.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}

	unlock, err := b.acquireAccountLock(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	saved, err := b.datasource.RecordDeposit(ctx, transaction)
	if err != nil {
		return b.resolveIdempotencyConflict(ctx, idempotencyKey, err)
	}

	b.postTransactionActions(ctx, account.UserID, "deposit", saved)
	return saved, nil
}

// Withdraw debits a user's account. Fails with an insufficient-funds error
// when the balance cannot cover the amount; the balance is untouched in
// that case.
func (b *Bancore) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, description, idempotencyKey string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Withdraw")
	defer span.End()

	return b.recordOutflow(ctx, userID, amount, description, idempotencyKey, model.TypeWithdrawal, "withdrawal")
}

// recordOutflow is the shared debit path for withdrawals and balance
// payments. The transaction is recorded as completed with the debit in the
// same database transaction.
func (b *Bancore) recordOutflow(ctx context.Context, userID string, amount decimal.Decimal, description, idempotencyKey, transactionType, auditAction string) (*model.Transaction, error) {
	if replayed, err := b.replayedTransaction(ctx, idempotencyKey); replayed != nil || err != nil {
		return replayed, err
	}

	account, err := b.datasource.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	transaction := &model.Transaction{
		TransactionID:  model.GenerateUUIDWithSuffix("txn"),
		Source:         account.AccountID,
		Amount:         amount,
		Type:           transactionType,
		Status:         model.StatusCompleted,
		Description:    description,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}
	if err := transaction.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}

	unlock, err := b.acquireAccountLock(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	saved, err := b.datasource.RecordWithdrawal(ctx, transaction)
	if err != nil {
		return b.resolveIdempotencyConflict(ctx, idempotencyKey, err)
	}

	b.postTransactionActions(ctx, account.UserID, auditAction, saved)
	return saved, nil
}

// Transfer moves money from a user's account to the account identified by
// number. Both balance updates commit atomically or not at all.
func (b *Bancore) Transfer(ctx context.Context, userID, destinationNumber string, amount decimal.Decimal, description, idempotencyKey string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Transfer")
	defer span.End()

	if replayed, err := b.replayedTransaction(ctx, idempotencyKey); replayed != nil || err != nil {
		return replayed, err
	}

	source, err := b.datasource.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	destination, err := b.datasource.GetAccountByNumber(ctx, destinationNumber)
	if err != nil {
		return nil, err
	}
	if destination.AccountID == source.AccountID {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Cannot transfer to the same account", nil)
	}

	transaction := &model.Transaction{
		TransactionID:  model.GenerateUUIDWithSuffix("txn"),
		Source:         source.AccountID,
		Destination:    destination.AccountID,
		Amount:         amount,
		Type:           model.TypeTransfer,
		Status:         model.StatusCompleted,
		Description:    description,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}
	if err := transaction.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}

	unlock, err := b.acquireAccountLock(ctx, source.AccountID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	saved, err := b.datasource.RecordTransfer(ctx, transaction)
	if err != nil {
		return b.resolveIdempotencyConflict(ctx, idempotencyKey, err)
	}

	b.postTransactionActions(ctx, source.UserID, "transfer_out", saved)
	b.postTransactionActions(ctx, destination.UserID, "transfer_in", saved)
	return saved, nil
}

// UpdateTransactionStatus moves a transaction to completed or failed and
// applies the balance effect of the transition. Terminal transactions only
// absorb the metadata.
func (b *Bancore) UpdateTransactionStatus(ctx context.Context, transactionID, status string, metadata map[string]interface{}) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "UpdateTransactionStatus")
	defer span.End()

	transaction, err := b.datasource.UpdateTransactionStatus(ctx, transactionID, status, metadata)
	if err != nil {
		return nil, err
	}

	// Audit the status the transition actually resolved to. A terminal
	// transaction absorbs the request without changing status.
	if userID, resolveErr := b.transactionOwner(ctx, transaction); resolveErr == nil {
		b.postTransactionActions(ctx, userID, "transaction_"+transaction.Status, transaction)
	} else {
		logrus.Warnf("could not resolve owner for audit of %s: %v", transaction.TransactionID, resolveErr)
	}
	return transaction, nil
}

// GetTransaction fetches a transaction by id.
func (b *Bancore) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	return b.datasource.GetTransaction(ctx, transactionID)
}

// GetTransactionHistory lists a user's transactions, newest first, covering
// both sides of transfers.
func (b *Bancore) GetTransactionHistory(ctx context.Context, userID string) ([]model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "GetTransactionHistory")
	defer span.End()

	account, err := b.datasource.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.datasource.GetTransactionsForAccount(ctx, account.AccountID)
}

// replayedTransaction returns the stored transaction when the idempotency
// key was already used, nil when the key is unseen or empty.
func (b *Bancore) replayedTransaction(ctx context.Context, idempotencyKey string) (*model.Transaction, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	return b.datasource.GetTransactionByIdempotencyKey(ctx, idempotencyKey)
}

// resolveIdempotencyConflict turns a unique-key violation raced in by a
// concurrent duplicate request into the stored transaction.
func (b *Bancore) resolveIdempotencyConflict(ctx context.Context, idempotencyKey string, cause error) (*model.Transaction, error) {
	if idempotencyKey == "" || !apierror.Is(cause, apierror.ErrConflict) {
		return nil, cause
	}
	stored, err := b.datasource.GetTransactionByIdempotencyKey(ctx, idempotencyKey)
	if err != nil || stored == nil {
		return nil, cause
	}
	return stored, nil
}

// acquireAccountLock serializes money movement on an account across
// processes. The row lock inside the database transaction remains the
// source of truth; this keeps contending requests queued instead of
// piling up on the row.
func (b *Bancore) acquireAccountLock(ctx context.Context, accountID string) (func(), error) {
	locker := redlock.NewLocker(b.redis, "account:"+accountID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, accountLockTimeout, accountLockWait); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Account is busy, try again", err)
	}
	return func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Errorf("failed to release lock for account %s: %v", accountID, err)
		}
	}, nil
}

// transactionOwner resolves the user whose account drives the transaction,
// the destination holder for deposits and the source holder otherwise.
func (b *Bancore) transactionOwner(ctx context.Context, transaction *model.Transaction) (string, error) {
	accountID := transaction.Source
	if transaction.Type == model.TypeDeposit {
		accountID = transaction.Destination
	}
	account, err := b.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.UserID, nil
}
