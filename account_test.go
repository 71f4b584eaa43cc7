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
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/model"
)

func TestCreateAccount(t *testing.T) {
	service, datasource, _ := newTestBancore(t)

	userID := gofakeit.UUID()
	datasource.On("CreateAccount", mock.Anything, mock.MatchedBy(func(a *model.Account) bool {
		return a.UserID == userID && a.AccountType == "checking" && a.Active && a.Balance.IsZero()
	})).Return(&model.Account{AccountID: "acc_1", UserID: userID, Number: "123456"}, nil).Once()

	account, err := service.CreateAccount(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, "acc_1", account.AccountID)
	assert.Equal(t, userID, account.UserID)
	datasource.AssertExpectations(t)
}

func TestCreateAccountRequiresUserID(t *testing.T) {
	service, datasource, _ := newTestBancore(t)

	_, err := service.CreateAccount(context.Background(), "")
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
	datasource.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestCreateAccountRetriesNumberCollision(t *testing.T) {
	service, datasource, _ := newTestBancore(t)

	userID := gofakeit.UUID()
	collision := apierror.APIError{Code: apierror.ErrConflict, Message: "Account already exists", Details: "accounts_number_key"}
	datasource.On("CreateAccount", mock.Anything, mock.Anything).Return(nil, collision).Once()
	datasource.On("CreateAccount", mock.Anything, mock.Anything).Return(&model.Account{AccountID: "acc_2", UserID: userID}, nil).Once()

	account, err := service.CreateAccount(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, "acc_2", account.AccountID)
	datasource.AssertNumberOfCalls(t, "CreateAccount", 2)
}

func TestCreateAccountDuplicateUser(t *testing.T) {
	service, datasource, _ := newTestBancore(t)

	duplicate := apierror.APIError{Code: apierror.ErrConflict, Message: "User already has an account", Details: "accounts_user_id_key"}
	datasource.On("CreateAccount", mock.Anything, mock.Anything).Return(nil, duplicate).Once()

	_, err := service.CreateAccount(context.Background(), gofakeit.UUID())
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
	datasource.AssertNumberOfCalls(t, "CreateAccount", 1)
}

func TestGetBalance(t *testing.T) {
	service, datasource, _ := newTestBancore(t)

	userID := gofakeit.UUID()
	datasource.On("GetAccountByUserID", mock.Anything, userID).
		Return(&model.Account{AccountID: "acc_1", UserID: userID, Balance: decimal.NewFromFloat(150.25)}, nil).Once()

	account, err := service.GetBalance(context.Background(), userID)
	assert.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromFloat(150.25)))
	datasource.AssertExpectations(t)
}

func TestGetBalanceUnknownUser(t *testing.T) {
	service, datasource, _ := newTestBancore(t)

	datasource.On("GetAccountByUserID", mock.Anything, "ghost").
		Return(nil, apierror.APIError{Code: apierror.ErrNotFound, Message: "Account not found"}).Once()

	_, err := service.GetBalance(context.Background(), "ghost")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}
