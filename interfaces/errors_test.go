package interfaces

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ERR_INVALID_SCORE", ErrorCode(ErrInvalidScore))
	assert.Equal(t, "ERR_ALREADY_FUNDED", ErrorCode(fmt.Errorf("fund INV-1: %w", ErrAlreadyFunded)))
	assert.Equal(t, "ERR_INTERNAL", ErrorCode(errors.New("boom")))

	// insufficient funds is reported ahead of the settlement wrapper
	wrapped := fmt.Errorf("%w: %w", ErrSettlementFailed, ErrInsufficientFunds)
	assert.Equal(t, "ERR_INSUFFICIENT_FUNDS", ErrorCode(wrapped))
}

func TestErrorFromCode(t *testing.T) {
	for _, c := range errorCodes {
		assert.Equal(t, c.err, ErrorFromCode(c.code))
	}
	assert.Nil(t, ErrorFromCode("ERR_SOMETHING_ELSE"))
}
