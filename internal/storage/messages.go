package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"herald/internal/template"
)

type MessageKind string

const (
	KindWelcome MessageKind = "welcome"
	KindGoodbye MessageKind = "goodbye"
	KindBoost   MessageKind = "boost"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindWelcome, KindGoodbye, KindBoost:
		return true
	}
	return false
}

// GuildMessage is a configured automatic message. Source is what the author
// wrote; Parsed is kept alongside it so sending never reparses.
type GuildMessage struct {
	GuildID   string
	Kind      MessageKind
	ChannelID string
	Enabled   bool
	Source    template.MessageSchema
	Parsed    template.ParsedMessage
	UpdatedAt time.Time
}

func (s *Store) GetMessage(ctx context.Context, guildID string, kind MessageKind) (GuildMessage, error) {
	row := s.queryRow(ctx, `
		SELECT guild_id, kind, channel_id, enabled, source, parsed, updated_at
		FROM guild_messages
		WHERE guild_id = ? AND kind = ?
	`, guildID, string(kind))

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GuildMessage{}, ErrNotFound
	}
	return msg, err
}

func (s *Store) UpsertMessage(ctx context.Context, msg GuildMessage) error {
	source, err := json.Marshal(msg.Source)
	if err != nil {
		return fmt.Errorf("encode message source: %w", err)
	}
	parsed, err := json.Marshal(msg.Parsed)
	if err != nil {
		return fmt.Errorf("encode parsed message: %w", err)
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = time.Now()
	}

	_, err = s.exec(ctx, `
		INSERT INTO guild_messages (guild_id, kind, channel_id, enabled, source, parsed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, kind) DO UPDATE SET
			channel_id = excluded.channel_id,
			enabled = excluded.enabled,
			source = excluded.source,
			parsed = excluded.parsed,
			updated_at = excluded.updated_at
	`,
		msg.GuildID,
		string(msg.Kind),
		msg.ChannelID,
		boolToInt(msg.Enabled),
		string(source),
		string(parsed),
		msg.UpdatedAt.Unix(),
	)
	return err
}

func (s *Store) SetMessageEnabled(ctx context.Context, guildID string, kind MessageKind, enabled bool) error {
	res, err := s.exec(ctx, `
		UPDATE guild_messages SET enabled = ?, updated_at = ?
		WHERE guild_id = ? AND kind = ?
	`, boolToInt(enabled), time.Now().Unix(), guildID, string(kind))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteMessage(ctx context.Context, guildID string, kind MessageKind) error {
	res, err := s.exec(ctx, `DELETE FROM guild_messages WHERE guild_id = ? AND kind = ?`, guildID, string(kind))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) ListMessages(ctx context.Context, guildID string) ([]GuildMessage, error) {
	rows, err := s.query(ctx, `
		SELECT guild_id, kind, channel_id, enabled, source, parsed, updated_at
		FROM guild_messages
		WHERE guild_id = ?
		ORDER BY kind
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []GuildMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (GuildMessage, error) {
	var msg GuildMessage
	var kind, source, parsed string
	var enabled int
	var updated int64
	if err := row.Scan(&msg.GuildID, &kind, &msg.ChannelID, &enabled, &source, &parsed, &updated); err != nil {
		return GuildMessage{}, err
	}
	msg.Kind = MessageKind(kind)
	msg.Enabled = enabled == 1
	msg.UpdatedAt = time.Unix(updated, 0)
	if err := json.Unmarshal([]byte(source), &msg.Source); err != nil {
		return GuildMessage{}, fmt.Errorf("decode message source: %w", err)
	}
	if err := json.Unmarshal([]byte(parsed), &msg.Parsed); err != nil {
		return GuildMessage{}, fmt.Errorf("decode parsed message: %w", err)
	}
	return msg, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
