package bot

import "github.com/bwmarrin/discordgo"

var manageGuild int64 = discordgo.PermissionManageGuild

func kindOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "kind",
		Description: "Which message",
		Required:    true,
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "welcome", Value: "welcome"},
			{Name: "goodbye", Value: "goodbye"},
			{Name: "boost", Value: "boost"},
		},
	}
}

func channelOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionChannel,
		Name:        name,
		Description: description,
		Required:    required,
		ChannelTypes: []discordgo.ChannelType{
			discordgo.ChannelTypeGuildText,
			discordgo.ChannelTypeGuildVoice,
			discordgo.ChannelTypeGuildNews,
		},
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	dmPermission := false
	return []*discordgo.ApplicationCommand{
		{
			Name:        "message",
			Description: "Configure welcome, goodbye and boost messages",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Configurer les messages de bienvenue, depart et boost",
				discordgo.EnglishUS: "Configure welcome, goodbye and boost messages",
				discordgo.SpanishES: "Configurar mensajes de bienvenida, despedida y mejora",
			},
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("set", "Save a message template",
					kindOption(),
					channelOption("channel", "Channel to post in", true),
					stringOption("content", "Message text", false),
					stringOption("title", "Embed title", false),
					stringOption("description", "Embed description", false),
					stringOption("color", "Embed color as hex, e.g. #5865F2", false),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "color_mode",
						Description: "Where the embed color comes from",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "fixed", Value: "fixed"},
							{Name: "member", Value: "member"},
							{Name: "user", Value: "user"},
							{Name: "guild", Value: "guild"},
						},
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "timestamp",
						Description: "Show the send time on the embed",
					},
					stringOption("image", "Embed image URL", false),
					stringOption("thumbnail", "Embed thumbnail URL", false),
					stringOption("footer", "Embed footer text", false),
				),
				subcommand("show", "Show a saved template", kindOption()),
				subcommand("test", "Render a message for yourself in this channel", kindOption()),
				subcommand("enable", "Enable a message", kindOption()),
				subcommand("disable", "Disable a message", kindOption()),
				subcommand("delete", "Delete a message", kindOption()),
				subcommand("list", "List configured messages"),
			},
		},
		{
			Name:        "stats",
			Description: "Keep channel names in sync with server stats",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Synchroniser le nom des salons avec les statistiques",
				discordgo.EnglishUS: "Keep channel names in sync with server stats",
				discordgo.SpanishES: "Sincronizar nombres de canales con estadisticas",
			},
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Track a channel",
					channelOption("channel", "Channel to rename", true),
					stringOption("format", "Name template, e.g. Members: {members}", true),
				),
				subcommand("remove", "Stop tracking a channel",
					channelOption("channel", "Tracked channel", true),
				),
				subcommand("list", "List tracked channels"),
			},
		},
		{
			Name:                     "template",
			Description:              "Check and preview a template",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("check", "Parse and render a template against yourself",
					stringOption("text", "Template text", true),
				),
				subcommand("functions", "List available functions"),
			},
		},
		{
			Name:                     "report",
			Description:              "Show message activity for the last 24 hours",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &dmPermission,
		},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	_, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions())
	return err
}
