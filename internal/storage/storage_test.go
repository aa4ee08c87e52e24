package storage

import (
	"context"
	"testing"
	"time"

	"herald/internal/template"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate())
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	require.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pg.rebind("SELECT a FROM t WHERE b = ? AND c = ?"))

	lite := &Store{dialect: dialectSQLite}
	require.Equal(t, "WHERE b = ?", lite.rebind("WHERE b = ?"))
}

func TestUpsertMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	source := template.MessageSchema{
		Content: "Welcome {mention}!",
		Embeds: []template.Embed[string]{{
			Title:     "{server}",
			ColorMode: template.ColorMember,
			Color:     0x123456,
			Fields:    []template.EmbedField[string]{{Name: "Member", Value: "{ordinal {members}}"}},
		}},
	}
	parsed, err := template.ParseMessage(source, false)
	require.NoError(t, err)

	msg := GuildMessage{
		GuildID:   "g1",
		Kind:      KindWelcome,
		ChannelID: "c1",
		Enabled:   true,
		Source:    source,
		Parsed:    parsed,
		UpdatedAt: time.Unix(1700000000, 0),
	}
	require.NoError(t, store.UpsertMessage(ctx, msg))

	msg.ChannelID = "c2"
	require.NoError(t, store.UpsertMessage(ctx, msg))

	got, err := store.GetMessage(ctx, "g1", KindWelcome)
	require.NoError(t, err)
	require.Equal(t, "c2", got.ChannelID)
	require.True(t, got.Enabled)
	require.Equal(t, source, got.Source)
	require.Equal(t, msg.UpdatedAt, got.UpdatedAt)
	if diff := cmp.Diff(parsed, got.Parsed, cmp.Comparer(template.Equal)); diff != "" {
		t.Fatalf("parsed message mismatch (-want +got):\n%s", diff)
	}

	_, err = store.GetMessage(ctx, "g1", KindGoodbye)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessageLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, kind := range []MessageKind{KindWelcome, KindBoost} {
		require.NoError(t, store.UpsertMessage(ctx, GuildMessage{
			GuildID:   "g1",
			Kind:      kind,
			ChannelID: "c1",
			Enabled:   true,
			Parsed:    template.ParsedMessage{Content: template.Text{}},
		}))
	}

	require.NoError(t, store.SetMessageEnabled(ctx, "g1", KindWelcome, false))
	got, err := store.GetMessage(ctx, "g1", KindWelcome)
	require.NoError(t, err)
	require.False(t, got.Enabled)

	require.ErrorIs(t, store.SetMessageEnabled(ctx, "g1", KindGoodbye, false), ErrNotFound)

	msgs, err := store.ListMessages(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, KindBoost, msgs[0].Kind)
	require.Equal(t, KindWelcome, msgs[1].Kind)

	require.NoError(t, store.DeleteMessage(ctx, "g1", KindBoost))
	require.ErrorIs(t, store.DeleteMessage(ctx, "g1", KindBoost), ErrNotFound)

	msgs, err = store.ListMessages(ctx, "g2")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestStatsChannels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	parsed, err := template.ParseText("Members: {members}")
	require.NoError(t, err)

	require.NoError(t, store.UpsertStatsChannel(ctx, StatsChannel{ChannelID: "c1", GuildID: "g1", Format: "Members: {members}", Parsed: parsed}))
	require.NoError(t, store.UpsertStatsChannel(ctx, StatsChannel{ChannelID: "c2", GuildID: "g2", Format: "static", Parsed: template.Text{}}))
	require.NoError(t, store.SetStatsChannelName(ctx, "c1", "Members: 10"))

	all, err := store.ListStatsChannels(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Members: 10", all[0].LastName)
	if diff := cmp.Diff(parsed, all[0].Parsed, cmp.Comparer(template.Equal)); diff != "" {
		t.Fatalf("parsed format mismatch (-want +got):\n%s", diff)
	}

	// Changing the format forgets the applied name.
	require.NoError(t, store.UpsertStatsChannel(ctx, StatsChannel{ChannelID: "c1", GuildID: "g1", Format: "{boosts}", Parsed: parsed}))
	g1, err := store.ListStatsChannels(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, g1, 1)
	require.Equal(t, "{boosts}", g1[0].Format)
	require.Empty(t, g1[0].LastName)

	require.ErrorIs(t, store.DeleteStatsChannel(ctx, "g2", "c1"), ErrNotFound)
	require.NoError(t, store.DeleteStatsChannel(ctx, "g1", "c1"))
}

func TestAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.AddAuditLog(ctx, AuditLog{GuildID: "g1", Level: "INFO", Event: "message_sent", CreatedAt: now}))
	require.NoError(t, store.AddAuditLog(ctx, AuditLog{GuildID: "g1", Level: "WARN", Event: "render_failed", Details: "Unrecognized function: x.", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.AddAuditLog(ctx, AuditLog{GuildID: "g2", Level: "INFO", Event: "message_sent", CreatedAt: now}))

	logs, err := store.ListAuditLogs(ctx, "g1", now.Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "message_sent", logs[0].Event)

	require.NoError(t, store.CleanupAuditLogs(ctx, 1))
	logs, err = store.ListAuditLogs(ctx, "g1", now.Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 1)
}
