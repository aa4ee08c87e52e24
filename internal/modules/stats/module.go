package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"herald/internal/config"
	"herald/internal/modules/audit"
	"herald/internal/storage"
	"herald/internal/template"
	"herald/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Discord channel names are limited to 100 characters.
const maxNameRunes = 100

type Store interface {
	ListStatsChannels(ctx context.Context, guildID string) ([]storage.StatsChannel, error)
	SetStatsChannelName(ctx context.Context, channelID, name string) error
}

type Renderer interface {
	EvaluateText(ctx context.Context, text template.Text, c template.Context) (string, error)
}

type Guilds interface {
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
}

type Renamer interface {
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Module struct {
	store    Store
	renderer Renderer
	guilds   Guilds
	renamer  Renamer
	audit    *audit.Logger
	logger   *zap.Logger
	cfg      config.StatsConfig
	timeout  time.Duration
	limiter  *utils.KeyedWindow
	clock    Clock
}

func New(store Store, renderer Renderer, guilds Guilds, renamer Renamer, auditLogger *audit.Logger, cfg config.Config, logger *zap.Logger) *Module {
	return &Module{
		store:    store,
		renderer: renderer,
		guilds:   guilds,
		renamer:  renamer,
		audit:    auditLogger,
		logger:   logger,
		cfg:      cfg.Stats,
		timeout:  cfg.Render.Timeout(),
		limiter:  utils.NewKeyedWindow(cfg.Stats.Window()),
		clock:    realClock{},
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// Run refreshes every stats channel now and then on each interval until ctx
// is done.
func (m *Module) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()
	for {
		if err := m.RefreshAll(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("stats refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Module) RefreshAll(ctx context.Context) error {
	return m.refresh(ctx, "")
}

func (m *Module) RefreshGuild(ctx context.Context, guildID string) error {
	return m.refresh(ctx, guildID)
}

func (m *Module) refresh(ctx context.Context, guildID string) error {
	channels, err := m.store.ListStatsChannels(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list stats channels: %w", err)
	}

	byGuild := make(map[string][]storage.StatsChannel)
	var order []string
	for _, ch := range channels {
		if _, ok := byGuild[ch.GuildID]; !ok {
			order = append(order, ch.GuildID)
		}
		byGuild[ch.GuildID] = append(byGuild[ch.GuildID], ch)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range order {
		g.Go(func() error {
			m.refreshGuild(gctx, id, byGuild[id])
			return nil
		})
	}
	return g.Wait()
}

func (m *Module) refreshGuild(ctx context.Context, guildID string, channels []storage.StatsChannel) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	guild, err := m.guilds.Guild(ctx, guildID)
	if err != nil {
		m.logger.Warn("stats guild lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	for _, ch := range channels {
		if err := m.Apply(ctx, guild, ch); err != nil {
			m.logger.Warn("stats channel update failed", zap.String("guild_id", guildID), zap.String("channel_id", ch.ChannelID), zap.Error(err))
		}
	}
}

// Apply renders ch against guild and renames the channel when the name
// changed and the channel's rename budget allows it.
func (m *Module) Apply(ctx context.Context, guild *discordgo.Guild, ch storage.StatsChannel) error {
	name, err := m.Render(ctx, guild, ch.Parsed)
	if err != nil {
		m.audit.Log(ctx, audit.LevelWarn, ch.GuildID, "", audit.EventRenderFailed, fmt.Sprintf("channel=%s error=%s", ch.ChannelID, err))
		return err
	}
	if name == "" || name == ch.LastName {
		return nil
	}
	if !m.limiter.Allow(ch.ChannelID, m.clock.Now(), m.cfg.RenamesPerWindow) {
		m.logger.Debug("stats rename deferred", zap.String("channel_id", ch.ChannelID))
		return nil
	}

	if _, err := m.renamer.ChannelEdit(ch.ChannelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("rename channel: %w", err)
	}
	if err := m.store.SetStatsChannelName(ctx, ch.ChannelID, name); err != nil {
		return fmt.Errorf("record channel name: %w", err)
	}
	m.audit.Log(ctx, audit.LevelInfo, ch.GuildID, "", audit.EventStatsRenamed, fmt.Sprintf("channel=%s name=%s", ch.ChannelID, name))
	return nil
}

// Render evaluates a stats format into a channel name.
func (m *Module) Render(ctx context.Context, guild *discordgo.Guild, text template.Text) (string, error) {
	name, err := m.renderer.EvaluateText(ctx, text, template.Context{Guild: guild})
	if err != nil {
		return "", err
	}
	return trimName(name), nil
}

func (m *Module) Forget(channelID string) {
	m.limiter.Forget(channelID)
}

func trimName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	runes := []rune(name)
	if len(runes) > maxNameRunes {
		runes = runes[:maxNameRunes]
	}
	return strings.TrimSpace(string(runes))
}
