package user

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithEmail(t *testing.T) {
	u := New("Jon Snow", "jon@labstack.com")

	assert.Equal(t, "Jon Snow", u.Name)
	assert.NotEmpty(t, u.ID)
	assert.Contains(t, u.Avatar, "https://www.gravatar.com/avatar/")
}

func TestNewWithoutEmail(t *testing.T) {
	u := New("Jon Snow", "")

	assert.Equal(t, "", u.Avatar)
}

func TestEmailIsNotSerialized(t *testing.T) {
	data, err := json.Marshal(New("Jon Snow", "jon@labstack.com"))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "labstack")
	assert.Contains(t, string(data), `"avatar":`)
}
