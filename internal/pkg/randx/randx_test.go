package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserIDIsStable(t *testing.T) {
	a := UserID("Jon Snow", "jon@labstack.com")
	b := UserID("Jon Snow", "jon@labstack.com")
	c := UserID("Jon Snow", "")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestGravatar(t *testing.T) {
	assert.Equal(t, "", Gravatar(""))
	assert.Equal(t, "", Gravatar("   "))

	url := Gravatar("Jon@LabStack.com ")
	assert.True(t, strings.HasPrefix(url, "https://www.gravatar.com/avatar/"))
	assert.Equal(t, Gravatar("jon@labstack.com"), url)
}

func TestMessageID(t *testing.T) {
	_, err := uuid.Parse(MessageID())
	assert.NoError(t, err)
	assert.NotEqual(t, MessageID(), MessageID())
}

func TestIsValidChannel(t *testing.T) {
	cases := map[string]bool{
		"lobby":                 true,
		"team-a_2":              true,
		"":                      false,
		"has space":             false,
		"emoji✌":                false,
		strings.Repeat("x", 33): false,
		strings.Repeat("x", 32): true,
	}

	for name, want := range cases {
		assert.Equal(t, want, IsValidChannel(name), "channel %q", name)
	}
}
