package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"a@x.com", "@", "user@localhost", "a@"} {
		assert.NoError(t, ValidateEmail(email), email)
	}
	for _, email := range []string{"", "a.x.com", "plainaddress"} {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail, email)
	}
}
