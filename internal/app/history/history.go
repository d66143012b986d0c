/*
Package history stores the chat lines of every channel so newly connected clients can
bootstrap with recent messages.
*/
package history

import (
	"context"
	"time"

	"chitchat/internal/app/message"
)

// DefaultLimit caps how many messages List returns when the caller passes no limit.
const DefaultLimit = 100

// Store persists message events per channel. Implementations must be safe for concurrent use.
type Store interface {
	// Append records msg in channel.
	Append(ctx context.Context, channel string, msg message.ChannelMessage) error

	// List returns up to limit of the most recent messages in channel sent at or after
	// since (zero means no lower bound), oldest first.
	List(ctx context.Context, channel string, since time.Time, limit int) ([]message.ChannelMessage, error)

	// Close releases backend resources.
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
