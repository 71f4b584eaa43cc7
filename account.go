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

	"github.com/sirupsen/logrus"

	"github.com/bancore/bancore/internal/apierror"
	"github.com/bancore/bancore/model"
)

const accountNumberRetries = 3

// CreateAccount opens a checking account for a user. A user holds at most
// one account; a second attempt returns a conflict. Number generation is
// retried on the rare collision with an existing account number.
func (b *Bancore) CreateAccount(ctx context.Context, userID string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "CreateAccount")
	defer span.End()

	if userID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "User ID is required", nil)
	}

	account := model.NewAccount(userID)
	var err error
	for attempt := 0; attempt < accountNumberRetries; attempt++ {
		var created *model.Account
		created, err = b.datasource.CreateAccount(ctx, account)
		if err == nil {
			return created, nil
		}
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict && apiErr.Details == "accounts_number_key" {
			logrus.Warnf("account number collision for user %s, regenerating", userID)
			account.Number = model.GenerateAccountNumber()
			continue
		}
		return nil, err
	}
	return nil, err
}

// GetAccountByUserID resolves a user's account.
func (b *Bancore) GetAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	return b.datasource.GetAccountByUserID(ctx, userID)
}

// GetBalance returns the account with its current balance for a user.
func (b *Bancore) GetBalance(ctx context.Context, userID string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	return b.datasource.GetAccountByUserID(ctx, userID)
}
