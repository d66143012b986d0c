package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorKnownCode(t *testing.T) {
	err := NewError(ErrNameBlank)

	assert.Equal(t, ErrNameBlank, err.Code)
	assert.Equal(t, "Name can't be blank", err.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
}

func TestNewErrorFormatsDetails(t *testing.T) {
	err := NewError(ErrChannelNameInvalid, 32)

	assert.Contains(t, err.Message, "(max 32)")
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(424242)

	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestNewErrorDoesNotMutateTemplate(t *testing.T) {
	_ = NewError(ErrChannelNameInvalid, 5)
	again := NewError(ErrChannelNameInvalid, 7)

	assert.Contains(t, again.Message, "(max 7)")
}
