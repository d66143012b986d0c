/*
Package message defines ChannelMessage, the event that travels over the live channel
connection and through the history endpoint.
*/
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chitchat/internal/app/user"
	"chitchat/internal/pkg/randx"
)

// Type tags the ChannelMessage union.
type Type string

const (
	// TypeMessage is a chat line; Text is set.
	TypeMessage Type = "message"

	// TypeJoin announces that FromUser came online in the channel.
	TypeJoin Type = "join"

	// TypeLeave announces that FromUser went offline.
	TypeLeave Type = "leave"
)

// MaxTextBytes is the longest chat line the server relays.
const MaxTextBytes = 5000

// Known reports whether t is one of the types this build understands.
func (t Type) Known() bool {
	switch t {
	case TypeMessage, TypeJoin, TypeLeave:
		return true
	}
	return false
}

// ChannelMessage is one event in a channel.
type ChannelMessage struct {
	// ID is assigned by the server; older servers may omit it.
	ID string `json:"id,omitempty"`

	Type     Type      `json:"type"`
	FromUser user.User `json:"from_user"`
	SentAt   time.Time `json:"sent_at"`

	// Text is only meaningful for TypeMessage.
	Text string `json:"text,omitempty"`
}

// NewText builds a chat line from u stamped with sentAt.
func NewText(u user.User, sentAt time.Time, text string) ChannelMessage {
	return ChannelMessage{
		ID:       randx.MessageID(),
		Type:     TypeMessage,
		FromUser: u,
		SentAt:   sentAt.UTC(),
		Text:     text,
	}
}

// NewPresence builds a join or leave event for u.
func NewPresence(t Type, u user.User, sentAt time.Time) ChannelMessage {
	return ChannelMessage{
		ID:       randx.MessageID(),
		Type:     t,
		FromUser: u,
		SentAt:   sentAt.UTC(),
	}
}

var (
	// ErrMissingType is returned by Decode for frames without a type tag.
	ErrMissingType = errors.New("message: missing type")

	// ErrMissingUser is returned by Decode for known events without a sender id.
	ErrMissingUser = errors.New("message: missing from_user.id")
)

// Decode parses one inbound frame and fails closed on anything malformed.
// Frames of an unknown type decode successfully so callers can skip them; callers
// must check Type.Known before applying the event.
func Decode(data []byte) (ChannelMessage, error) {
	var msg ChannelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ChannelMessage{}, fmt.Errorf("message: decode frame: %w", err)
	}

	if msg.Type == "" {
		return ChannelMessage{}, ErrMissingType
	}

	if msg.Type.Known() && msg.FromUser.ID == "" {
		return ChannelMessage{}, ErrMissingUser
	}

	return msg, nil
}
