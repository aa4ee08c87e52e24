package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/yaml.v3"
)

// fixture is the YAML description of the data a template is rendered
// against offline.
type fixture struct {
	Guild  *fixtureGuild  `yaml:"guild"`
	Member *fixtureMember `yaml:"member"`

	// Role is the ID of a guild role to expose to role functions.
	Role string `yaml:"role"`
}

type fixtureGuild struct {
	ID      string          `yaml:"id"`
	Name    string          `yaml:"name"`
	Icon    string          `yaml:"icon"`
	Banner  string          `yaml:"banner"`
	Boosts  int             `yaml:"boosts"`
	Tier    int             `yaml:"tier"`
	Roles   []fixtureRole   `yaml:"roles"`
	Members []fixtureMember `yaml:"members"`

	// Humans and Bots pad the member list with anonymous members.
	Humans int `yaml:"humans"`
	Bots   int `yaml:"bots"`
}

type fixtureRole struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Color    int    `yaml:"color"`
	Position int    `yaml:"position"`
	Hoist    bool   `yaml:"hoist"`
	Icon     string `yaml:"icon"`
}

type fixtureMember struct {
	User     fixtureUser `yaml:"user"`
	Nick     string      `yaml:"nick"`
	Roles    []string    `yaml:"roles"`
	Boosting bool        `yaml:"boosting"`
}

type fixtureUser struct {
	ID            string `yaml:"id"`
	Username      string `yaml:"username"`
	GlobalName    string `yaml:"global_name"`
	Discriminator string `yaml:"discriminator"`
	Avatar        string `yaml:"avatar"`
	Banner        string `yaml:"banner"`
	AccentColor   int    `yaml:"accent_color"`
	Bot           bool   `yaml:"bot"`
}

func loadFixture(path string) (fixture, error) {
	var f fixture
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// toContext converts the fixture into evaluation data. The member is always
// part of the guild's member list.
func (f fixture) toContext(now time.Time) (template.Context, error) {
	var c template.Context
	var guild *discordgo.Guild
	if f.Guild != nil {
		guild = &discordgo.Guild{
			ID:                       f.Guild.ID,
			Name:                     f.Guild.Name,
			Icon:                     f.Guild.Icon,
			Banner:                   f.Guild.Banner,
			PremiumSubscriptionCount: f.Guild.Boosts,
			PremiumTier:              discordgo.PremiumTier(f.Guild.Tier),
		}
		for _, r := range f.Guild.Roles {
			guild.Roles = append(guild.Roles, &discordgo.Role{
				ID:       r.ID,
				Name:     r.Name,
				Color:    r.Color,
				Position: r.Position,
				Hoist:    r.Hoist,
				Icon:     r.Icon,
			})
		}
		for _, m := range f.Guild.Members {
			guild.Members = append(guild.Members, m.member(guild.ID, now))
		}
		for i := range f.Guild.Humans {
			guild.Members = append(guild.Members, anonymous(guild.ID, "human", i, false))
		}
		for i := range f.Guild.Bots {
			guild.Members = append(guild.Members, anonymous(guild.ID, "bot", i, true))
		}
		guild.MemberCount = len(guild.Members)
		c.Guild = guild
	}

	if f.Member != nil {
		if guild == nil {
			return c, fmt.Errorf("member needs a guild")
		}
		member := f.Member.member(guild.ID, now)
		if !containsUser(guild.Members, member.User.ID) {
			guild.Members = append(guild.Members, member)
			guild.MemberCount = len(guild.Members)
		}
		c.Member = &template.Member{Member: member, Guild: guild}
	}

	if f.Role != "" {
		if guild == nil {
			return c, fmt.Errorf("role needs a guild")
		}
		for _, role := range guild.Roles {
			if role.ID == f.Role {
				c.Role = &template.Role{Role: role, Guild: guild}
			}
		}
		if c.Role == nil {
			return c, fmt.Errorf("role %s is not in the guild", f.Role)
		}
	}
	return c, nil
}

func (m fixtureMember) member(guildID string, now time.Time) *discordgo.Member {
	member := &discordgo.Member{
		GuildID: guildID,
		Nick:    m.Nick,
		Roles:   m.Roles,
		User: &discordgo.User{
			ID:            m.User.ID,
			Username:      m.User.Username,
			GlobalName:    m.User.GlobalName,
			Discriminator: m.User.Discriminator,
			Avatar:        m.User.Avatar,
			Banner:        m.User.Banner,
			AccentColor:   m.User.AccentColor,
			Bot:           m.User.Bot,
		},
	}
	if member.User.Discriminator == "" {
		member.User.Discriminator = "0"
	}
	if m.Boosting {
		since := now
		member.PremiumSince = &since
	}
	return member
}

func anonymous(guildID, prefix string, i int, bot bool) *discordgo.Member {
	id := prefix + "-" + strconv.Itoa(i+1)
	return &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: id, Username: id, Discriminator: "0", Bot: bot},
	}
}

func containsUser(members []*discordgo.Member, userID string) bool {
	for _, m := range members {
		if m.User != nil && m.User.ID == userID {
			return true
		}
	}
	return false
}
