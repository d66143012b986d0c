package history

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chitchat/internal/app/message"
)

const (
	insertMessageSQL = `
INSERT INTO channel_messages (id, channel, type, from_id, from_name, from_avatar, body, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

	listMessagesSQL = `
SELECT id, type, from_id, from_name, from_avatar, body, sent_at
FROM channel_messages
WHERE channel = $1 AND sent_at >= $2
ORDER BY seq DESC
LIMIT $3`
)

// Postgres stores history in the channel_messages table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already migrated pool (see db.NewPool).
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Append implements Store.
func (p *Postgres) Append(ctx context.Context, channel string, msg message.ChannelMessage) error {
	_, err := p.pool.Exec(ctx, insertMessageSQL,
		msg.ID,
		channel,
		string(msg.Type),
		msg.FromUser.ID,
		msg.FromUser.Name,
		msg.FromUser.Avatar,
		msg.Text,
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert message %s: %w", msg.ID, err)
	}

	return nil
}

// List implements Store.
func (p *Postgres) List(ctx context.Context, channel string, since time.Time, limit int) ([]message.ChannelMessage, error) {
	rows, err := p.pool.Query(ctx, listMessagesSQL, channel, since, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: query channel %s: %w", channel, err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.ChannelMessage, error) {
		var (
			msg     message.ChannelMessage
			msgType string
		)
		err := row.Scan(
			&msg.ID,
			&msgType,
			&msg.FromUser.ID,
			&msg.FromUser.Name,
			&msg.FromUser.Avatar,
			&msg.Text,
			&msg.SentAt,
		)
		msg.Type = message.Type(msgType)
		msg.SentAt = msg.SentAt.UTC()
		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan channel %s: %w", channel, err)
	}

	slices.Reverse(msgs)

	return msgs, nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
