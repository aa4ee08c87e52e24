package stats

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"herald/internal/config"
	"herald/internal/modules/audit"
	"herald/internal/storage"
	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeStore struct {
	mu       sync.Mutex
	channels []storage.StatsChannel
}

func (f *fakeStore) ListStatsChannels(_ context.Context, guildID string) ([]storage.StatsChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.StatsChannel
	for _, ch := range f.channels {
		if guildID == "" || ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeStore) SetStatsChannelName(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		if f.channels[i].ChannelID == channelID {
			f.channels[i].LastName = name
		}
	}
	return nil
}

type fakeGuilds struct {
	guilds map[string]*discordgo.Guild
}

func (f fakeGuilds) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	return f.guilds[guildID], nil
}

type fakeRenamer struct {
	mu      sync.Mutex
	renames map[string][]string
}

func (f *fakeRenamer) ChannelEdit(channelID string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames[channelID] = append(f.renames[channelID], data.Name)
	return &discordgo.Channel{ID: channelID, Name: data.Name}, nil
}

type nopAudit struct{}

func (nopAudit) AddAuditLog(context.Context, storage.AuditLog) error { return nil }

func statsChannel(t *testing.T, guildID, channelID, format string) storage.StatsChannel {
	t.Helper()
	parsed, err := template.ParseText(format)
	require.NoError(t, err)
	return storage.StatsChannel{ChannelID: channelID, GuildID: guildID, Format: format, Parsed: parsed}
}

func newModule(t *testing.T, store *fakeStore, guilds map[string]*discordgo.Guild) (*Module, *fakeRenamer, *fakeClock) {
	t.Helper()
	cfg := config.DefaultConfig()
	renamer := &fakeRenamer{renames: make(map[string][]string)}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := New(store, template.NewEvaluator(nil, nil), fakeGuilds{guilds: guilds}, renamer, audit.NewLogger(nopAudit{}, zap.NewNop()), cfg, zap.NewNop())
	m.WithClock(clock)
	return m, renamer, clock
}

func guildWithMembers(id string, n int) *discordgo.Guild {
	guild := &discordgo.Guild{ID: id, Name: "Gophers", PremiumSubscriptionCount: 3}
	for i := 0; i < n; i++ {
		guild.Members = append(guild.Members, &discordgo.Member{User: &discordgo.User{ID: "u"}})
	}
	return guild
}

func TestRefreshRenamesChangedChannels(t *testing.T) {
	store := &fakeStore{channels: []storage.StatsChannel{
		statsChannel(t, "g1", "c1", "Members: {members}"),
		statsChannel(t, "g1", "c2", "Boosts: {boosts}"),
		statsChannel(t, "g2", "c3", "{server}"),
	}}
	guilds := map[string]*discordgo.Guild{"g1": guildWithMembers("g1", 12), "g2": guildWithMembers("g2", 1)}
	m, renamer, _ := newModule(t, store, guilds)

	require.NoError(t, m.RefreshAll(context.Background()))
	require.Equal(t, []string{"Members: 12"}, renamer.renames["c1"])
	require.Equal(t, []string{"Boosts: 3"}, renamer.renames["c2"])
	require.Equal(t, []string{"Gophers"}, renamer.renames["c3"])

	// Unchanged names are not renamed again.
	require.NoError(t, m.RefreshAll(context.Background()))
	require.Len(t, renamer.renames["c1"], 1)
}

func TestRenamesAreRateLimited(t *testing.T) {
	store := &fakeStore{channels: []storage.StatsChannel{statsChannel(t, "g1", "c1", "Members: {members}")}}
	guild := guildWithMembers("g1", 1)
	m, renamer, clock := newModule(t, store, map[string]*discordgo.Guild{"g1": guild})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		guild.Members = append(guild.Members, &discordgo.Member{})
		require.NoError(t, m.RefreshGuild(ctx, "g1"))
		clock.now = clock.now.Add(time.Minute)
	}
	require.Equal(t, []string{"Members: 2", "Members: 3"}, renamer.renames["c1"])

	clock.now = clock.now.Add(10 * time.Minute)
	require.NoError(t, m.RefreshGuild(ctx, "g1"))
	require.Equal(t, []string{"Members: 2", "Members: 3", "Members: 4"}, renamer.renames["c1"])
}

func TestRenderFailureSkipsRename(t *testing.T) {
	store := &fakeStore{channels: []storage.StatsChannel{statsChannel(t, "g1", "c1", "{nickname}")}}
	m, renamer, _ := newModule(t, store, map[string]*discordgo.Guild{"g1": guildWithMembers("g1", 1)})

	require.NoError(t, m.RefreshAll(context.Background()))
	require.Empty(t, renamer.renames)
}

func TestTrimName(t *testing.T) {
	require.Equal(t, "a b", trimName("  a \n\t b "))
	long := strings.Repeat("é", 150)
	require.Equal(t, strings.Repeat("é", 100), trimName(long))
	require.Empty(t, trimName("   "))
}
