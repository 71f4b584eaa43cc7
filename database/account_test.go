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

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/bancore/bancore/cache"
	"github.com/bancore/bancore/config"
	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/model"
)

var accountColumns = []string{"id", "account_id", "user_id", "number", "balance", "account_type", "active", "created_at", "meta_data"}

func newTestDatasource(t *testing.T) (Datasource, sqlmock.Sqlmock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis:      config.RedisConfig{Dns: mr.Addr()},
		DataSource: config.DataSourceConfig{Dns: "postgres://postgres:@localhost:5432/bancore?sslmode=disable"},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	newCache, err := cache.NewCache()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when creating the cache", err)
	}
	return Datasource{Conn: db, Cache: newCache}, mock
}

func TestCreateAccount(t *testing.T) {
	d, mock := newTestDatasource(t)

	account := model.NewAccount("user-1")
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(account.AccountID, account.UserID, account.Number, sqlmock.AnyArg(), "checking", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := d.CreateAccount(context.Background(), account)
	assert.NoError(t, err)
	assert.Equal(t, account.AccountID, created.AccountID)
	assert.Equal(t, "user-1", created.UserID)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateAccountDuplicateUser(t *testing.T) {
	d, mock := newTestDatasource(t)

	account := model.NewAccount("user-1")
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_user_id_key"})

	_, err := d.CreateAccount(context.Background(), account)
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
	apiErr := err.(apierror.APIError)
	assert.Equal(t, "accounts_user_id_key", apiErr.Details)
}

func TestCreateAccountNumberCollision(t *testing.T) {
	d, mock := newTestDatasource(t)

	account := model.NewAccount("user-2")
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_number_key"})

	_, err := d.CreateAccount(context.Background(), account)
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
	apiErr := err.(apierror.APIError)
	assert.Equal(t, "accounts_number_key", apiErr.Details)
}

func TestGetAccountByUserID(t *testing.T) {
	d, mock := newTestDatasource(t)

	rows := sqlmock.NewRows(accountColumns).
		AddRow(1, "acc_1", "user-1", "123456", "150.25", "checking", true, time.Now(), []byte(`{"tier":"basic"}`))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE user_id = \\$1").
		WithArgs("user-1").
		WillReturnRows(rows)

	account, err := d.GetAccountByUserID(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.Equal(t, "acc_1", account.AccountID)
	assert.Equal(t, "123456", account.Number)
	assert.Equal(t, "150.25", account.Balance.String())
	assert.Equal(t, "basic", account.MetaData["tier"])
}

func TestGetAccountByUserIDNotFound(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE user_id = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := d.GetAccountByUserID(context.Background(), "ghost")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestGetAccountByNumber(t *testing.T) {
	d, mock := newTestDatasource(t)

	rows := sqlmock.NewRows(accountColumns).
		AddRow(2, "acc_2", "user-2", "654321", "0", "checking", true, time.Now(), nil)
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE number = \\$1").
		WithArgs("654321").
		WillReturnRows(rows)

	account, err := d.GetAccountByNumber(context.Background(), "654321")
	assert.NoError(t, err)
	assert.Equal(t, "acc_2", account.AccountID)
}

func TestGetAccountByNumberNotFound(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE number = \\$1").
		WithArgs("000000").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := d.GetAccountByNumber(context.Background(), "000000")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}
