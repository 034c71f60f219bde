package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPErrorMessage(t *testing.T) {
	err := &HTTPError{Status: 403, URL: "https://api.example/player"}
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "https://api.example/player")
}

func TestNotPlayableErrorMessage(t *testing.T) {
	assert.Equal(t, "not playable: LOGIN_REQUIRED", (&NotPlayableError{Status: "LOGIN_REQUIRED"}).Error())
	assert.Equal(t, "not playable: Region locked", (&NotPlayableError{Status: "UNPLAYABLE", Reason: "Region locked"}).Error())
}

func TestIsNotPlayable(t *testing.T) {
	wrapped := fmt.Errorf("persona rejected: %w", &NotPlayableError{Status: "UNPLAYABLE"})
	assert.True(t, IsNotPlayable(wrapped))
	assert.False(t, IsNotPlayable(errors.New("plain")))
	assert.False(t, IsNotPlayable(nil))
}
