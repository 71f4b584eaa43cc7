package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/model"
)

// CreateAccount persists a new account. A duplicate user id or a collision
// on the generated 6-digit number both surface as Conflict; the caller
// distinguishes them via the Details field and may retry number collisions.
func (d Datasource) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	metaDataJSON, err := json.Marshal(account.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO accounts(account_id,user_id,number,balance,account_type,active,created_at,meta_data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		account.AccountID, account.UserID, account.Number, account.Balance, account.AccountType, account.Active, account.CreatedAt, metaDataJSON,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Account already exists", pqErr.Constraint)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create account", err)
	}

	return account, nil
}

func (d Datasource) GetAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, user_id, number, balance, account_type, active, created_at, meta_data
		FROM accounts
		WHERE user_id = $1
	`, userID)
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account for user '%s' not found", userID), err)
		}
		return nil, err
	}
	return account, nil
}

func (d Datasource) GetAccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, user_id, number, balance, account_type, active, created_at, meta_data
		FROM accounts
		WHERE number = $1
	`, number)
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Destination account not found", err)
		}
		return nil, err
	}
	return account, nil
}

func (d Datasource) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, user_id, number, balance, account_type, active, created_at, meta_data
		FROM accounts
		WHERE account_id = $1
	`, accountID)
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", accountID), err)
		}
		return nil, err
	}
	return account, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	account := &model.Account{}
	var metaDataJSON []byte
	err := row.Scan(&account.ID, &account.AccountID, &account.UserID, &account.Number, &account.Balance, &account.AccountType, &account.Active, &account.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve account", err)
	}

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return account, nil
}
