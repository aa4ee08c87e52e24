package greeter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"herald/internal/config"
	"herald/internal/modules/audit"
	"herald/internal/storage"
	"herald/internal/template"
	"herald/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	GetMessage(ctx context.Context, guildID string, kind storage.MessageKind) (storage.GuildMessage, error)
}

type Renderer interface {
	EvaluateMessage(ctx context.Context, parsed template.ParsedMessage, c template.Context, allowMentions bool) (*discordgo.MessageSend, error)
}

type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ErrDisabled is returned by Send when the guild has no enabled message of
// the requested kind.
var ErrDisabled = errors.New("message is not configured")

type Module struct {
	store    Store
	renderer Renderer
	sender   Sender
	audit    *audit.Logger
	logger   *zap.Logger
	cfg      config.RenderConfig
}

func New(store Store, renderer Renderer, sender Sender, auditLogger *audit.Logger, cfg config.RenderConfig, logger *zap.Logger) *Module {
	return &Module{
		store:    store,
		renderer: renderer,
		sender:   sender,
		audit:    auditLogger,
		logger:   logger,
		cfg:      cfg,
	}
}

func (m *Module) HandleJoin(ctx context.Context, event *discordgo.GuildMemberAdd) {
	if event.Member == nil {
		return
	}
	m.dispatch(ctx, storage.KindWelcome, event.Member)
}

func (m *Module) HandleLeave(ctx context.Context, event *discordgo.GuildMemberRemove) {
	if event.Member == nil {
		return
	}
	m.dispatch(ctx, storage.KindGoodbye, event.Member)
}

// HandleUpdate sends the boost message when a member starts boosting.
func (m *Module) HandleUpdate(ctx context.Context, event *discordgo.GuildMemberUpdate) {
	if event.Member == nil || event.Member.PremiumSince == nil {
		return
	}
	if event.BeforeUpdate == nil || event.BeforeUpdate.PremiumSince != nil {
		return
	}
	m.dispatch(ctx, storage.KindBoost, event.Member)
}

func (m *Module) dispatch(ctx context.Context, kind storage.MessageKind, member *discordgo.Member) {
	if member.User != nil && member.User.Bot && kind != storage.KindBoost {
		return
	}
	err := m.Send(ctx, kind, member, "")
	if err == nil || errors.Is(err, ErrDisabled) {
		return
	}
	m.logger.Warn("greeting failed", zap.String("guild_id", member.GuildID), zap.String("kind", string(kind)), zap.Error(err))
}

// Send renders the stored message of kind for member and posts it. When
// channelID is empty the configured channel is used. Nothing is sent if
// rendering fails.
func (m *Module) Send(ctx context.Context, kind storage.MessageKind, member *discordgo.Member, channelID string) error {
	guildID := member.GuildID
	msg, err := m.store.GetMessage(ctx, guildID, kind)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrDisabled
	}
	if err != nil {
		return fmt.Errorf("load %s message: %w", kind, err)
	}
	if channelID == "" {
		if !msg.Enabled || msg.ChannelID == "" {
			return ErrDisabled
		}
		channelID = msg.ChannelID
	}

	userID := ""
	if member.User != nil {
		userID = member.User.ID
	}

	// delivery ties together the audit entries of one send attempt.
	delivery := uuid.NewString()
	renderCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout())
	defer cancel()
	started := time.Now()
	c := template.Context{Member: &template.Member{Member: member, Guild: &discordgo.Guild{ID: guildID}}}
	send, err := m.renderer.EvaluateMessage(renderCtx, msg.Parsed, c, m.cfg.AllowMentions)
	if err != nil {
		m.audit.Log(ctx, audit.LevelWarn, guildID, userID, audit.EventRenderFailed, fmt.Sprintf("delivery=%s kind=%s error=%s", delivery, kind, err))
		return err
	}
	utils.SanitizeEmbeds(send.Embeds)
	if send.Content == "" && len(send.Embeds) == 0 {
		return ErrDisabled
	}

	if _, err := m.sender.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx)); err != nil {
		m.audit.Log(ctx, audit.LevelWarn, guildID, userID, audit.EventSendFailed, fmt.Sprintf("delivery=%s kind=%s channel=%s error=%s", delivery, kind, channelID, err))
		return err
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, userID, audit.EventMessageSent, fmt.Sprintf("delivery=%s kind=%s channel=%s render_ms=%d", delivery, kind, channelID, time.Since(started).Milliseconds()))
	return nil
}
