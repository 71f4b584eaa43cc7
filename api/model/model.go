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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// RecordDeposit is the request body for POST /transactions/deposit.
type RecordDeposit struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// RecordWithdrawal is the request body for POST /transactions/withdraw.
type RecordWithdrawal struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// RecordTransfer is the request body for POST /transactions/transfer. The
// destination is the human-shareable 6-digit account number, not an
// internal id.
type RecordTransfer struct {
	DestinationNumber string          `json:"destination_number"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
}

// PayBalance is the request body for POST /payment/pay-balance.
type PayBalance struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ProcessPayment is the request body for POST /payment/process-external.
type ProcessPayment struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Description string          `json:"description"`
	PayerEmail  string          `json:"payer_email"`
}

func amountPositive(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount type")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func (d *RecordDeposit) ValidateRecordDeposit() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Amount, validation.By(amountPositive)),
	)
}

func (w *RecordWithdrawal) ValidateRecordWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.Amount, validation.By(amountPositive)),
	)
}

func (t *RecordTransfer) ValidateRecordTransfer() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.DestinationNumber, validation.Required, validation.Length(6, 6)),
		validation.Field(&t.Amount, validation.By(amountPositive)),
	)
}

func (p *PayBalance) ValidatePayBalance() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Amount, validation.By(amountPositive)),
	)
}

func (p *ProcessPayment) ValidateProcessPayment() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Amount, validation.By(amountPositive)),
		validation.Field(&p.Method, validation.Required),
	)
}
