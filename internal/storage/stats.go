package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"herald/internal/template"
)

// StatsChannel is a voice or text channel whose name is kept in sync with a
// rendered template.
type StatsChannel struct {
	ChannelID string
	GuildID   string
	Format    string
	Parsed    template.Text
	LastName  string
	UpdatedAt time.Time
}

func (s *Store) UpsertStatsChannel(ctx context.Context, ch StatsChannel) error {
	parsed, err := json.Marshal(ch.Parsed)
	if err != nil {
		return fmt.Errorf("encode stats format: %w", err)
	}
	if ch.UpdatedAt.IsZero() {
		ch.UpdatedAt = time.Now()
	}
	// A new format invalidates the last applied name.
	_, err = s.exec(ctx, `
		INSERT INTO stats_channels (channel_id, guild_id, format, parsed, last_name, updated_at)
		VALUES (?, ?, ?, ?, '', ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			guild_id = excluded.guild_id,
			format = excluded.format,
			parsed = excluded.parsed,
			last_name = '',
			updated_at = excluded.updated_at
	`, ch.ChannelID, ch.GuildID, ch.Format, string(parsed), ch.UpdatedAt.Unix())
	return err
}

func (s *Store) DeleteStatsChannel(ctx context.Context, guildID, channelID string) error {
	res, err := s.exec(ctx, `DELETE FROM stats_channels WHERE guild_id = ? AND channel_id = ?`, guildID, channelID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) SetStatsChannelName(ctx context.Context, channelID, name string) error {
	_, err := s.exec(ctx, `
		UPDATE stats_channels SET last_name = ?, updated_at = ? WHERE channel_id = ?
	`, name, time.Now().Unix(), channelID)
	return err
}

// ListStatsChannels returns the stats channels of guildID, or of every guild
// when guildID is empty.
func (s *Store) ListStatsChannels(ctx context.Context, guildID string) ([]StatsChannel, error) {
	query := `
		SELECT channel_id, guild_id, format, parsed, last_name, updated_at
		FROM stats_channels`
	var args []any
	if guildID != "" {
		query += ` WHERE guild_id = ?`
		args = append(args, guildID)
	}
	query += ` ORDER BY guild_id, channel_id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []StatsChannel
	for rows.Next() {
		var ch StatsChannel
		var parsed string
		var updated int64
		if err := rows.Scan(&ch.ChannelID, &ch.GuildID, &ch.Format, &parsed, &ch.LastName, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(parsed), &ch.Parsed); err != nil {
			return nil, fmt.Errorf("decode stats format for %s: %w", ch.ChannelID, err)
		}
		ch.UpdatedAt = time.Unix(updated, 0)
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
