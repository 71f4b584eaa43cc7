package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/model"
)

var tracer = otel.Tracer("bancore.ledger.db")

const transactionCacheTTL = 5 * time.Minute

func transactionCacheKey(id string) string {
	return fmt.Sprintf("txn:%s", id)
}

// RecordDeposit credits the destination account and appends the transaction
// in one atomic unit. Pending deposits (gateway-backed) insert the record
// without touching the balance; the credit happens on confirmation.
func (d Datasource) RecordDeposit(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Recording deposit")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if txn.Status == model.StatusCompleted {
		if err := creditAccountTx(ctx, tx, txn.Destination, txn.Amount); err != nil {
			return nil, err
		}
	}

	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit deposit", err)
	}
	return txn, nil
}

// RecordWithdrawal debits the source account and appends the transaction in
// one atomic unit. The source row is locked for the duration so two
// concurrent withdrawals cannot both observe a stale balance.
func (d Datasource) RecordWithdrawal(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Recording withdrawal")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := debitAccountTx(ctx, tx, txn.Source, txn.Amount); err != nil {
		return nil, err
	}

	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit withdrawal", err)
	}
	return txn, nil
}

// RecordTransfer moves funds between two accounts. Both balance mutations
// and the transaction insert commit or abort together; rows are locked in
// deterministic order to avoid deadlocks between crossing transfers.
func (d Datasource) RecordTransfer(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Recording transfer")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	first, second := txn.Source, txn.Destination
	if second < first {
		first, second = second, first
	}
	balances := make(map[string]decimal.Decimal, 2)
	for _, accountID := range []string{first, second} {
		balance, err := lockAccountTx(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		balances[accountID] = balance
	}

	if balances[txn.Source].LessThan(txn.Amount) {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientFunds, "Insufficient funds", nil)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance - $1 WHERE account_id = $2`, txn.Amount, txn.Source); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit source account", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance + $1 WHERE account_id = $2`, txn.Amount, txn.Destination); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit destination account", err)
	}

	if err := insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transfer", err)
	}
	return txn, nil
}

// UpdateTransactionStatus drives a pending transaction to a terminal status
// and applies the matching balance effect: a confirmed gateway deposit
// credits its destination, a failed outflow credits back its source. A
// transaction that is already terminal keeps its status; only the metadata
// patch is persisted.
func (d Datasource) UpdateTransactionStatus(ctx context.Context, id string, status string, metadata map[string]interface{}) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Updating transaction status")
	defer span.End()

	if status != model.StatusCompleted && status != model.StatusFailed {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Unsupported status transition to '%s'", status), nil)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	txn, err := getTransactionForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	txn.MergeMetaData(metadata)

	if txn.IsTerminal() {
		// Terminal statuses are sticky. Re-delivered webhooks only merge
		// diagnostic metadata.
		if err := updateTransactionRowTx(ctx, tx, txn); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit metadata merge", err)
		}
		d.invalidateTransactionCache(ctx, id)
		return txn, nil
	}

	if delta := statusTransitionDelta(txn, status); delta != nil {
		if err := creditAccountTx(ctx, tx, delta.accountID, delta.amount); err != nil {
			return nil, err
		}
	}

	txn.Status = status
	if err := updateTransactionRowTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit status transition", err)
	}
	d.invalidateTransactionCache(ctx, id)
	return txn, nil
}

// statusTransitionDelta returns the balance credit a pending→terminal
// transition must apply, or nil when the transition has no balance effect.
func statusTransitionDelta(txn *model.Transaction, status string) *creditDelta {
	switch status {
	case model.StatusCompleted:
		if txn.Type == model.TypeDeposit {
			return &creditDelta{accountID: txn.Destination, amount: txn.Amount}
		}
	case model.StatusFailed:
		switch txn.Type {
		case model.TypeWithdrawal, model.TypeTransfer, model.TypePayment:
			// Compensating reversal of funds reserved at creation time.
			return &creditDelta{accountID: txn.Source, amount: txn.Amount}
		}
	}
	return nil
}

// UpdateTransactionMetadata merges a metadata patch without touching the
// status. This is the first-class operation behind repeated "still pending"
// gateway pings.
func (d Datasource) UpdateTransactionMetadata(ctx context.Context, id string, metadata map[string]interface{}) (*model.Transaction, error) {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	txn, err := getTransactionForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	txn.MergeMetaData(metadata)

	if err := updateTransactionRowTx(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit metadata merge", err)
	}
	d.invalidateTransactionCache(ctx, id)
	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if d.Cache != nil {
		var cached model.Transaction
		if err := d.Cache.Get(ctx, transactionCacheKey(id), &cached); err == nil && cached.TransactionID != "" {
			return &cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, transaction_id, source, destination, amount, type, status, description, idempotency_key, created_at, meta_data
		FROM transactions
		WHERE transaction_id = $1
	`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, err
	}

	if d.Cache != nil {
		_ = d.Cache.Set(ctx, transactionCacheKey(id), txn, transactionCacheTTL)
	}
	return txn, nil
}

// GetTransactionByIdempotencyKey returns the stored transaction for a
// caller-supplied key, or nil when the key has never been used.
func (d Datasource) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, transaction_id, source, destination, amount, type, status, description, idempotency_key, created_at, meta_data
		FROM transactions
		WHERE idempotency_key = $1
	`, key)
	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return txn, nil
}

func (d Datasource) GetTransactionsForAccount(ctx context.Context, accountID string) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, transaction_id, source, destination, amount, type, status, description, idempotency_key, created_at, meta_data
		FROM transactions
		WHERE source = $1 OR destination = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transactions", err)
	}
	return transactions, nil
}

func (d Datasource) invalidateTransactionCache(ctx context.Context, id string) {
	if d.Cache != nil {
		_ = d.Cache.Delete(ctx, transactionCacheKey(id))
	}
}

// lockAccountTx takes a row lock on the account and returns its current
// balance. Reads within the atomic unit are always fresh.
func lockAccountTx(ctx context.Context, tx *sql.Tx, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", accountID), err)
		}
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock account", err)
	}
	return balance, nil
}

func creditAccountTx(ctx context.Context, tx *sql.Tx, accountID string, amount decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance + $1 WHERE account_id = $2`, amount, accountID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit account", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", accountID), nil)
	}
	return nil
}

func debitAccountTx(ctx context.Context, tx *sql.Tx, accountID string, amount decimal.Decimal) error {
	balance, err := lockAccountTx(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds, "Insufficient funds", nil)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance - $1 WHERE account_id = $2`, amount, accountID); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit account", err)
	}
	return nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions(transaction_id,source,destination,amount,type,status,description,idempotency_key,created_at,meta_data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		txn.TransactionID, nullString(txn.Source), nullString(txn.Destination), txn.Amount, txn.Type, txn.Status, txn.Description, nullString(txn.IdempotencyKey), txn.CreatedAt, metaDataJSON,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Idempotency key '%s' has already been used", txn.IdempotencyKey), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}
	return nil
}

func getTransactionForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Transaction, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, transaction_id, source, destination, amount, type, status, description, idempotency_key, created_at, meta_data
		FROM transactions
		WHERE transaction_id = $1
		FOR UPDATE
	`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, err
	}
	return txn, nil
}

func updateTransactionRowTx(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, meta_data = $3
		WHERE transaction_id = $1
	`, txn.TransactionID, txn.Status, metaDataJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction", err)
	}
	return nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var source, destination, idempotencyKey sql.NullString
	var metaDataJSON []byte
	err := row.Scan(&txn.ID, &txn.TransactionID, &source, &destination, &txn.Amount, &txn.Type, &txn.Status, &txn.Description, &idempotencyKey, &txn.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction data", err)
	}
	txn.Source = source.String
	txn.Destination = destination.String
	txn.IdempotencyKey = idempotencyKey.String

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
