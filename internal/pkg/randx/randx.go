/*
Package randx derives and generates the identifiers used by chitchat: stable user ids,
Gravatar avatar URLs, message ids and channel-name validation.
*/
package randx

import (
	"crypto/md5"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// ChannelNameMaxLength bounds channel names accepted at login.
	ChannelNameMaxLength = 32

	// channelChars is the set of characters allowed in a channel name.
	channelChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

	gravatarURL = "https://www.gravatar.com/avatar/%x?s=128"
)

// UserID derives a stable user id from name and email.
// The same name/email pair always maps to the same id so reconnecting clients keep their presence entry.
func UserID(name, email string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(name+email)))
}

// Gravatar returns the avatar URL for email, or "" when no email is given.
func Gravatar(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}

	return fmt.Sprintf(gravatarURL, md5.Sum([]byte(email)))
}

// MessageID generates a UUID v4 string identifying one chat message.
func MessageID() string {
	return uuid.New().String()
}

// IsValidChannel reports whether name is a non-empty channel name made of allowed characters.
func IsValidChannel(name string) bool {
	if name == "" || len(name) > ChannelNameMaxLength {
		return false
	}

	for _, char := range name {
		if !strings.ContainsRune(channelChars, char) {
			return false
		}
	}

	return true
}
