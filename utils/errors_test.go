package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, DomainErrorStatus(ErrInvalidTerms))
	assert.Equal(t, http.StatusConflict, DomainErrorStatus(ErrIllegalTransition))
	assert.Equal(t, http.StatusConflict, DomainErrorStatus(ErrDuplicateObligation))
	assert.Equal(t, http.StatusConflict, DomainErrorStatus(ErrConflictingPayment))
	assert.Equal(t, http.StatusServiceUnavailable, DomainErrorStatus(ErrProviderUnavailable))
	assert.Equal(t, http.StatusInternalServerError, DomainErrorStatus(errors.New("boom")))

	// Wrapped errors keep their mapping.
	wrapped := fmt.Errorf("creating order: %w", ErrProviderUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, DomainErrorStatus(wrapped))
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("record not found")
	appErr := NotFoundError("Contract not found", cause)

	assert.Equal(t, http.StatusNotFound, appErr.Code)
	assert.ErrorIs(t, appErr, cause)
	assert.Equal(t, appErr, GetAppError(fmt.Errorf("lookup: %w", appErr)))
	assert.Nil(t, GetAppError(cause))
}
