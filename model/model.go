package model

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix returns a prefixed UUID, e.g. "acc_5f8e...".
// The prefix identifies the owning module of the record.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// GenerateAccountNumber returns a random 6-digit account number. The number
// is the human-shareable identifier of an account, distinct from the
// internal account id.
func GenerateAccountNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}
