package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
)

const (
	maxEmbedDescription = 4096
	maxFieldValue       = 1024
)

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func (o options) stringValue(name string) string {
	if opt, ok := o[name]; ok {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

func (o options) boolValue(name string) bool {
	if opt, ok := o[name]; ok {
		if v, ok := opt.Value.(bool); ok {
			return v
		}
	}
	return false
}

func (o options) has(name string) bool {
	_, ok := o[name]
	return ok
}

// parseColor accepts 6 hex digits with an optional # or 0x prefix.
func parseColor(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, errors.New("color is empty")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || v > 0xFFFFFF {
		return 0, fmt.Errorf("%q is not a hex color like #5865F2", raw)
	}
	return int(v), nil
}

// schemaFromOptions builds the authoring message of /message set. An embed is
// only added when at least one embed option was given.
func schemaFromOptions(o options) (template.MessageSchema, error) {
	schema := template.MessageSchema{Content: o.stringValue("content")}

	embedKeys := []string{"title", "description", "color", "color_mode", "timestamp", "image", "thumbnail", "footer"}
	hasEmbed := false
	for _, key := range embedKeys {
		if o.has(key) {
			hasEmbed = true
			break
		}
	}
	if !hasEmbed {
		if schema.Content == "" {
			return schema, errors.New("give at least content or one embed option")
		}
		return schema, nil
	}

	embed := template.Embed[string]{
		Title:         o.stringValue("title"),
		Description:   o.stringValue("description"),
		Image:         o.stringValue("image"),
		Thumbnail:     o.stringValue("thumbnail"),
		Footer:        template.EmbedFooter[string]{Text: o.stringValue("footer")},
		ColorMode:     template.ColorMode(o.stringValue("color_mode")),
		ShowTimestamp: o.boolValue("timestamp"),
	}
	if embed.ColorMode == "" {
		embed.ColorMode = template.ColorFixed
	}
	if o.has("color") {
		color, err := parseColor(o.stringValue("color"))
		if err != nil {
			return schema, err
		}
		embed.Color = color
	}
	schema.Embeds = []template.Embed[string]{embed}
	return schema, nil
}

func codeBlock(s string) string {
	return "```\n" + strings.ReplaceAll(s, "```", "`\u200b``") + "\n```"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func formatFieldErrors(errs []*template.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, codeBlock(err.Error()))
	}
	return truncate(strings.Join(parts, "\n"), maxEmbedDescription)
}
