package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"herald/internal/modules/audit"
	"herald/internal/modules/greeter"
	"herald/internal/storage"
	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := interaction.ApplicationCommandData()
	if interaction.GuildID == "" || interaction.Member == nil {
		b.respondEmbed(session, interaction, b.errorEmbed(data.Name, "This command only works in a server."), true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var sub *discordgo.ApplicationCommandInteractionDataOption
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = data.Options[0]
	}

	switch data.Name {
	case "message":
		b.handleMessageCommand(ctx, session, interaction, sub)
	case "stats":
		b.handleStatsCommand(ctx, session, interaction, sub)
	case "template":
		b.handleTemplateCommand(ctx, session, interaction, sub)
	case "report":
		b.handleReportCommand(ctx, session, interaction)
	}
}

func (b *Bot) handleMessageCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	const title = "Messages"
	if sub == nil {
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Unknown subcommand."), true)
		return
	}
	guildID := interaction.GuildID
	opts := optionMap(sub.Options)

	if sub.Name == "list" {
		msgs, err := b.store.ListMessages(ctx, guildID)
		if err != nil {
			b.logger.Warn("list messages failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not load messages."), true)
			return
		}
		if len(msgs) == 0 {
			b.respondEmbed(session, interaction, b.commandEmbed(title, "No messages configured.", b.cfg.EmbedColors.Action, nil), true)
			return
		}
		fields := make([]*discordgo.MessageEmbedField, 0, len(msgs))
		for _, msg := range msgs {
			state := "enabled"
			if !msg.Enabled {
				state = "disabled"
			}
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   string(msg.Kind),
				Value:  fmt.Sprintf("<#%s> (%s)", msg.ChannelID, state),
				Inline: true,
			})
		}
		b.respondEmbed(session, interaction, b.commandEmbed(title, "", b.cfg.EmbedColors.Action, fields), true)
		return
	}

	kind := storage.MessageKind(opts.stringValue("kind"))
	if !kind.Valid() {
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Kind must be welcome, goodbye or boost."), true)
		return
	}

	switch sub.Name {
	case "set":
		b.handleMessageSet(ctx, session, interaction, kind, opts)
	case "show":
		msg, err := b.store.GetMessage(ctx, guildID, kind)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondEmbed(session, interaction, b.errorEmbed(title, fmt.Sprintf("No %s message is configured.", kind)), true)
			return
		}
		if err != nil {
			b.logger.Warn("get message failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not load the message."), true)
			return
		}
		source, err := yaml.Marshal(msg.Source)
		if err != nil {
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not display the message."), true)
			return
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Channel", Value: "<#" + msg.ChannelID + ">", Inline: true},
			{Name: "Enabled", Value: fmt.Sprintf("%t", msg.Enabled), Inline: true},
		}
		b.respondEmbed(session, interaction, b.commandEmbed(fmt.Sprintf("%s message", kind), truncate(codeBlock(string(source)), maxEmbedDescription), b.cfg.EmbedColors.Action, fields), true)
	case "test":
		b.deferReply(session, interaction)
		member := *interaction.Member
		member.GuildID = guildID
		err := b.greeter.Send(ctx, kind, &member, interaction.ChannelID)
		switch {
		case err == nil:
			b.editReply(session, interaction, b.commandEmbed(title, fmt.Sprintf("Sent a test %s message.", kind), b.cfg.EmbedColors.Action, nil))
		case errors.Is(err, greeter.ErrDisabled):
			b.editReply(session, interaction, b.errorEmbed(title, fmt.Sprintf("The %s message is not configured or renders empty.", kind)))
		default:
			b.editReply(session, interaction, b.errorEmbed(title, renderErrorText(err)))
		}
	case "enable", "disable":
		enabled := sub.Name == "enable"
		err := b.store.SetMessageEnabled(ctx, guildID, kind, enabled)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondEmbed(session, interaction, b.errorEmbed(title, fmt.Sprintf("No %s message is configured.", kind)), true)
			return
		}
		if err != nil {
			b.logger.Warn("toggle message failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not update the message."), true)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed(title, fmt.Sprintf("The %s message is now %sd.", kind, sub.Name), b.cfg.EmbedColors.Action, nil), true)
	case "delete":
		err := b.store.DeleteMessage(ctx, guildID, kind)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondEmbed(session, interaction, b.errorEmbed(title, fmt.Sprintf("No %s message is configured.", kind)), true)
			return
		}
		if err != nil {
			b.logger.Warn("delete message failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not delete the message."), true)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed(title, fmt.Sprintf("Deleted the %s message.", kind), b.cfg.EmbedColors.Action, nil), true)
	default:
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Unknown subcommand."), true)
	}
}

func (b *Bot) handleMessageSet(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, kind storage.MessageKind, opts options) {
	const title = "Messages"
	schema, err := schemaFromOptions(opts)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(title, err.Error()), true)
		return
	}
	if errs := template.Check(schema); len(errs) > 0 {
		b.respondEmbed(session, interaction, b.errorEmbed("Template errors", formatFieldErrors(errs)), true)
		return
	}
	parsed, err := template.ParseMessage(schema, false)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(title, err.Error()), true)
		return
	}

	msg := storage.GuildMessage{
		GuildID:   interaction.GuildID,
		Kind:      kind,
		ChannelID: opts.stringValue("channel"),
		Enabled:   true,
		Source:    schema,
		Parsed:    parsed,
	}
	if err := b.store.UpsertMessage(ctx, msg); err != nil {
		b.logger.Warn("save message failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not save the message."), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interaction.Member.User.ID, audit.EventTemplateSaved, fmt.Sprintf("kind=%s channel=%s", kind, msg.ChannelID))
	b.respondEmbed(session, interaction, b.commandEmbed(title, fmt.Sprintf("Saved the %s message for <#%s>. Use `/message test` to preview it.", kind, msg.ChannelID), b.cfg.EmbedColors.Action, nil), true)
}

func (b *Bot) handleStatsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	const title = "Stats channels"
	if sub == nil {
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Unknown subcommand."), true)
		return
	}
	guildID := interaction.GuildID
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "add":
		format := opts.stringValue("format")
		parsed, err := template.ParseText(format)
		if err != nil {
			b.respondEmbed(session, interaction, b.errorEmbed("Template errors", annotate(err, format)), true)
			return
		}
		ch := storage.StatsChannel{ChannelID: opts.stringValue("channel"), GuildID: guildID, Format: format, Parsed: parsed}
		if err := b.store.UpsertStatsChannel(ctx, ch); err != nil {
			b.logger.Warn("save stats channel failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not save the channel."), true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, guildID, interaction.Member.User.ID, audit.EventTemplateSaved, fmt.Sprintf("stats channel=%s", ch.ChannelID))
		b.refreshStatsLater(guildID)
		b.respondEmbed(session, interaction, b.commandEmbed(title, fmt.Sprintf("<#%s> will be renamed to match `%s`.", ch.ChannelID, format), b.cfg.EmbedColors.Action, nil), true)
	case "remove":
		channelID := opts.stringValue("channel")
		err := b.store.DeleteStatsChannel(ctx, guildID, channelID)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondEmbed(session, interaction, b.errorEmbed(title, "That channel is not tracked."), true)
			return
		}
		if err != nil {
			b.logger.Warn("delete stats channel failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not remove the channel."), true)
			return
		}
		b.stats.Forget(channelID)
		b.respondEmbed(session, interaction, b.commandEmbed(title, fmt.Sprintf("Stopped tracking <#%s>.", channelID), b.cfg.EmbedColors.Action, nil), true)
	case "list":
		channels, err := b.store.ListStatsChannels(ctx, guildID)
		if err != nil {
			b.logger.Warn("list stats channels failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respondEmbed(session, interaction, b.errorEmbed(title, "Could not load channels."), true)
			return
		}
		if len(channels) == 0 {
			b.respondEmbed(session, interaction, b.commandEmbed(title, "No channels are tracked.", b.cfg.EmbedColors.Action, nil), true)
			return
		}
		var lines []string
		for _, ch := range channels {
			lines = append(lines, fmt.Sprintf("<#%s> `%s`", ch.ChannelID, ch.Format))
		}
		b.respondEmbed(session, interaction, b.commandEmbed(title, truncate(strings.Join(lines, "\n"), maxEmbedDescription), b.cfg.EmbedColors.Action, nil), true)
	default:
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Unknown subcommand."), true)
	}
}

// refreshStatsLater renames the guild's stats channels in the background so
// the interaction is answered right away.
func (b *Bot) refreshStatsLater(guildID string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := b.stats.RefreshGuild(ctx, guildID); err != nil {
			b.logger.Warn("stats refresh failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}()
}

func (b *Bot) handleTemplateCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	const title = "Template"
	if sub == nil {
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Unknown subcommand."), true)
		return
	}

	switch sub.Name {
	case "check":
		text := optionMap(sub.Options).stringValue("text")
		parsed, err := template.ParseText(text)
		if err != nil {
			b.respondEmbed(session, interaction, b.errorEmbed("Template errors", annotate(err, text)), true)
			return
		}
		b.deferReply(session, interaction)
		member := *interaction.Member
		member.GuildID = interaction.GuildID
		c := template.Context{Member: &template.Member{Member: &member, Guild: &discordgo.Guild{ID: interaction.GuildID}}}
		renderCtx, cancel := context.WithTimeout(ctx, b.cfg.Render.Timeout())
		defer cancel()
		send, err := b.evaluator.EvaluateMessage(renderCtx, template.ParsedMessage{Content: parsed}, c, false)
		if err != nil {
			b.editReply(session, interaction, b.errorEmbed(title, renderErrorText(err)))
			return
		}
		out := send.Content
		if out == "" {
			out = "(empty)"
		}
		b.editReply(session, interaction, b.commandEmbed(title, truncate(out, maxEmbedDescription), b.cfg.EmbedColors.Action, nil))
	case "functions":
		scopes := []template.Scope{template.ScopeGlobal, template.ScopeMember, template.ScopeUser, template.ScopeGuild, template.ScopeRole}
		fields := make([]*discordgo.MessageEmbedField, 0, len(scopes))
		for _, scope := range scopes {
			names := template.Default().Names(scope)
			if len(names) == 0 {
				continue
			}
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:  scope.String(),
				Value: truncate("`"+strings.Join(names, "` `")+"`", maxFieldValue),
			})
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Functions", "Call a function with `{name args...}`.", b.cfg.EmbedColors.Action, fields), true)
	default:
		b.respondEmbed(session, interaction, b.errorEmbed(title, "Unknown subcommand."), true)
	}
}

func (b *Bot) handleReportCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	report, err := b.analytics.Report(ctx, interaction.GuildID, time.Now().Add(-24*time.Hour))
	if err != nil {
		b.logger.Warn("report failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.errorEmbed("Report", "Could not build the report."), true)
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Report (24h)", truncate(report.String(), maxEmbedDescription), b.cfg.EmbedColors.Action, nil), true)
}

// annotate formats a parse error with a caret under its position.
func annotate(err error, src string) string {
	var perr *template.Error
	if errors.As(err, &perr) {
		return codeBlock(perr.Annotate(src))
	}
	return err.Error()
}

// renderErrorText shows template errors verbatim and hides everything else.
func renderErrorText(err error) string {
	var perr *template.Error
	if errors.As(err, &perr) {
		return perr.Msg
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Rendering took too long."
	}
	return "Rendering failed."
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) errorEmbed(title, description string) *discordgo.MessageEmbed {
	return b.commandEmbed(title, description, b.cfg.EmbedColors.Error, nil)
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Debug("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) deferReply(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Debug("interaction defer failed", zap.Error(err))
	}
}

func (b *Bot) editReply(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.logger.Debug("interaction edit failed", zap.Error(err))
	}
}
