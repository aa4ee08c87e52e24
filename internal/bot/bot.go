package bot

import (
	"context"
	"sync"
	"time"

	"herald/internal/analytics"
	"herald/internal/config"
	"herald/internal/directory"
	"herald/internal/modules/audit"
	"herald/internal/modules/greeter"
	"herald/internal/modules/stats"
	"herald/internal/storage"
	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const eventTimeout = 30 * time.Second

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	directory *directory.Directory
	evaluator *template.Evaluator
	greeter   *greeter.Module
	stats     *stats.Module

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsEngine *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	session.State.TrackMembers = true

	dir := directory.New(session, cfg.Render.MemberPageSize, logger)
	evaluator := template.NewEvaluator(template.Default(), dir)

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsEngine,
		session:   session,
		directory: dir,
		evaluator: evaluator,
		greeter:   greeter.New(store, evaluator, session, auditLogger, cfg.Render, logger),
		stats:     stats.New(store, evaluator, dir, session, auditLogger, cfg, logger),
	}
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onGuildMemberUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.stats.Run(ctx)
	}()
	go func() {
		defer b.wg.Done()
		b.runRetention(ctx)
	}()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("background workers did not stop in time")
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// runRetention prunes old audit logs once a day.
func (b *Bot) runRetention(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil && ctx.Err() == nil {
			b.logger.Warn("audit cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, event *discordgo.GuildMemberAdd) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	b.greeter.HandleJoin(ctx, event)
}

func (b *Bot) onGuildMemberRemove(_ *discordgo.Session, event *discordgo.GuildMemberRemove) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	b.greeter.HandleLeave(ctx, event)
}

func (b *Bot) onGuildMemberUpdate(_ *discordgo.Session, event *discordgo.GuildMemberUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	b.greeter.HandleUpdate(ctx, event)
}
