package template

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
)

type ColorMode string

const (
	ColorFixed  ColorMode = "fixed"
	ColorMember ColorMode = "member"
	ColorUser   ColorMode = "user"
	ColorGuild  ColorMode = "guild"
)

// Message mirrors the shape of a Discord message. T is string for authoring
// input and rendered output, and Text once parsed.
type Message[T any] struct {
	Content T          `json:"content" yaml:"content"`
	Embeds  []Embed[T] `json:"embeds,omitempty" yaml:"embeds,omitempty"`
}

type Embed[T any] struct {
	Author        EmbedAuthor[T]  `json:"author" yaml:"author,omitempty"`
	Title         T               `json:"title" yaml:"title,omitempty"`
	Description   T               `json:"description" yaml:"description,omitempty"`
	URL           T               `json:"url" yaml:"url,omitempty"`
	Fields        []EmbedField[T] `json:"fields,omitempty" yaml:"fields,omitempty"`
	Image         T               `json:"image" yaml:"image,omitempty"`
	Thumbnail     T               `json:"thumbnail" yaml:"thumbnail,omitempty"`
	Footer        EmbedFooter[T]  `json:"footer" yaml:"footer,omitempty"`
	ColorMode     ColorMode       `json:"colorMode,omitempty" yaml:"color_mode,omitempty"`
	Color         int             `json:"color,omitempty" yaml:"color,omitempty"`
	ShowTimestamp bool            `json:"showTimestamp,omitempty" yaml:"show_timestamp,omitempty"`
}

type EmbedAuthor[T any] struct {
	Name    T `json:"name" yaml:"name,omitempty"`
	IconURL T `json:"iconURL" yaml:"icon_url,omitempty"`
	URL     T `json:"url" yaml:"url,omitempty"`
}

type EmbedField[T any] struct {
	Name   T    `json:"name" yaml:"name"`
	Value  T    `json:"value" yaml:"value"`
	Inline bool `json:"inline,omitempty" yaml:"inline,omitempty"`
}

type EmbedFooter[T any] struct {
	Text    T `json:"text" yaml:"text,omitempty"`
	IconURL T `json:"iconURL" yaml:"icon_url,omitempty"`
}

type (
	MessageSchema = Message[string]
	ParsedMessage = Message[Text]
)

// mapMessage applies f to every text leaf of m, leaving the other fields as
// they are.
func mapMessage[S, T any](m Message[S], f func(S) (T, error)) (Message[T], error) {
	var out Message[T]
	var err error
	if out.Content, err = f(m.Content); err != nil {
		return out, err
	}
	for _, in := range m.Embeds {
		e := Embed[T]{ColorMode: in.ColorMode, Color: in.Color, ShowTimestamp: in.ShowTimestamp}
		leaves := []struct {
			dst *T
			src S
		}{
			{&e.Author.Name, in.Author.Name},
			{&e.Author.IconURL, in.Author.IconURL},
			{&e.Author.URL, in.Author.URL},
			{&e.Title, in.Title},
			{&e.Description, in.Description},
			{&e.URL, in.URL},
			{&e.Image, in.Image},
			{&e.Thumbnail, in.Thumbnail},
			{&e.Footer.Text, in.Footer.Text},
			{&e.Footer.IconURL, in.Footer.IconURL},
		}
		for _, leaf := range leaves {
			if *leaf.dst, err = f(leaf.src); err != nil {
				return out, err
			}
		}
		for _, field := range in.Fields {
			var name, value T
			if name, err = f(field.Name); err != nil {
				return out, err
			}
			if value, err = f(field.Value); err != nil {
				return out, err
			}
			e.Fields = append(e.Fields, EmbedField[T]{Name: name, Value: value, Inline: field.Inline})
		}
		out.Embeds = append(out.Embeds, e)
	}
	return out, nil
}

func ParseMessage(input MessageSchema, isStatic bool) (ParsedMessage, error) {
	return Default().ParseMessage(input, isStatic)
}

// ParseMessage parses every text leaf of input. When isStatic is set nothing
// is parsed and every leaf becomes empty Text.
func (r *Registry) ParseMessage(input MessageSchema, isStatic bool) (ParsedMessage, error) {
	if isStatic {
		return mapMessage(input, func(string) (Text, error) { return Text{}, nil })
	}
	return mapMessage(input, r.ParseText)
}

// Fetches reports which fetch keys a parsed message may need.
func (r *Registry) Fetches(m ParsedMessage) []FetchKey {
	seen := make(map[FetchKey]bool)
	var walk func(Node)
	walk = func(node Node) {
		call, ok := node.(*Call)
		if !ok {
			return
		}
		if fn, ok := r.Lookup(call.Name); ok {
			for _, key := range fn.Fetch {
				seen[key] = true
			}
		}
		for _, arg := range call.Args {
			walk(arg)
		}
	}
	_, _ = mapMessage(m, func(t Text) (struct{}, error) {
		for _, seg := range t {
			walk(seg)
		}
		return struct{}{}, nil
	})
	keys := make([]FetchKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// EvaluateMessage renders parsed into a message ready to send. The context is
// refreshed from the directory first so functions see current data.
func (e *Evaluator) EvaluateMessage(ctx context.Context, parsed ParsedMessage, c Context, allowMentions bool) (*discordgo.MessageSend, error) {
	env := newEnv(ctx, e.dir, c)
	if err := e.refresh(env, e.funcs.Fetches(parsed)); err != nil {
		return nil, err
	}

	rendered, err := mapMessage(parsed, func(t Text) (string, error) {
		return e.evalText(env, t)
	})
	if err != nil {
		return nil, err
	}

	send := &discordgo.MessageSend{
		Content:         rendered.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
	if allowMentions {
		send.AllowedMentions.Parse = []discordgo.AllowedMentionType{
			discordgo.AllowedMentionTypeUsers,
			discordgo.AllowedMentionTypeRoles,
			discordgo.AllowedMentionTypeEveryone,
		}
	}
	for _, in := range rendered.Embeds {
		send.Embeds = append(send.Embeds, e.buildEmbed(env, in))
	}
	return send, nil
}

// refresh reloads the context objects and any fetches the message needs in
// one concurrent batch.
func (e *Evaluator) refresh(env *Env, fetches []FetchKey) error {
	if e.dir == nil {
		return nil
	}

	var (
		member *discordgo.Member
		user   *discordgo.User
		guild  *discordgo.Guild
	)
	guildID := ""
	if env.Guild != nil {
		guildID = env.Guild.ID
	} else if env.Member != nil {
		guildID = env.Member.GuildID
	}

	g, ctx := errgroup.WithContext(env.ctx)
	if env.Member != nil && env.Member.User != nil && guildID != "" {
		userID := env.Member.User.ID
		g.Go(func() (err error) {
			member, err = e.dir.Member(ctx, guildID, userID)
			return err
		})
	}
	if env.User != nil {
		userID := env.User.ID
		g.Go(func() (err error) {
			user, err = e.dir.User(ctx, userID)
			return err
		})
	}
	if guildID != "" {
		g.Go(func() (err error) {
			guild, err = e.dir.Guild(ctx, guildID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if guild != nil {
		env.Guild = guild
	}
	if user != nil {
		env.User = user
	}
	if env.Member != nil {
		if member == nil {
			member = env.Member.Member
		}
		env.Member = &Member{Member: member, Guild: env.Guild}
	}
	if env.Role != nil {
		env.Role = &Role{Role: env.Role.Role, Guild: env.Guild}
	}
	for _, key := range fetches {
		if err := env.fetch(key); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) buildEmbed(env *Env, in Embed[string]) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       in.Title,
		Description: in.Description,
		URL:         in.URL,
		Color:       e.embedColor(env, in),
	}
	if in.Author.Name != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: in.Author.Name, IconURL: in.Author.IconURL, URL: in.Author.URL}
	}
	if in.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: in.Image}
	}
	if in.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: in.Thumbnail}
	}
	if in.Footer.Text != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: in.Footer.Text, IconURL: in.Footer.IconURL}
	}
	for _, field := range in.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: field.Name, Value: field.Value, Inline: field.Inline})
	}
	if in.ShowTimestamp {
		embed.Timestamp = e.clock.Now().UTC().Format(time.RFC3339)
	}
	return embed
}

func (e *Evaluator) embedColor(env *Env, in Embed[string]) int {
	var live int
	switch in.ColorMode {
	case ColorMember:
		if env.Member != nil && env.Guild != nil {
			live = topRoleColor(env.Guild.Roles, func(id string) bool { return slices.Contains(env.Member.Roles, id) })
		}
	case ColorUser:
		if env.User != nil {
			live = env.User.AccentColor
		}
	case ColorGuild:
		if env.Guild != nil {
			live = topRoleColor(env.Guild.Roles, func(string) bool { return true })
		}
	}
	if live != 0 {
		return live
	}
	return in.Color
}

// topRoleColor returns the color of the highest positioned colored role that
// include accepts.
func topRoleColor(roles []*discordgo.Role, include func(id string) bool) int {
	color, position := 0, -1
	for _, role := range roles {
		if role == nil || role.Color == 0 || !include(role.ID) {
			continue
		}
		if role.Position > position {
			color, position = role.Color, role.Position
		}
	}
	return color
}
