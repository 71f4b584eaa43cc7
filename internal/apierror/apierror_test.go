package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorError(t *testing.T) {
	err := NewAPIError(ErrNotFound, "Account not found", nil)
	assert.Equal(t, "NOT_FOUND: Account not found", err.Error())
}

func TestIs(t *testing.T) {
	err := NewAPIError(ErrInsufficientFunds, "Insufficient funds", nil)
	assert.True(t, Is(err, ErrInsufficientFunds))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(errors.New("plain"), ErrNotFound))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{ErrGateway, http.StatusBadGateway},
		{ErrInternalServer, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := MapErrorToHTTPStatus(APIError{Code: tt.code})
		assert.Equal(t, tt.want, got)
	}

	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(errors.New("not an api error")))
}
