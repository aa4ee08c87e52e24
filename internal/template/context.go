package template

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/singleflight"
)

// Member is a guild member together with the guild it belongs to.
type Member struct {
	*discordgo.Member
	Guild *discordgo.Guild
}

// Role is a guild role together with the guild it belongs to.
type Role struct {
	*discordgo.Role
	Guild *discordgo.Guild
}

// Context is the live data a template is evaluated against. Every field is
// optional and borrowed from the caller.
type Context struct {
	Member *Member
	User   *discordgo.User
	Role   *Role
	Guild  *discordgo.Guild
}

func (c Context) withDefaults() Context {
	if c.Member != nil && c.Member.Member == nil {
		c.Member = nil
	}
	if c.Role != nil && c.Role.Role == nil {
		c.Role = nil
	}
	if c.User == nil && c.Member != nil {
		c.User = c.Member.User
	}
	if c.Guild == nil && c.Member != nil {
		c.Guild = c.Member.Guild
	}
	if c.Guild == nil && c.Role != nil {
		c.Guild = c.Role.Guild
	}
	return c
}

// Directory loads guild data on demand. Implementations talk to Discord.
// Member returns a nil member and no error when the user is no longer in the
// guild, so messages about departed members render with the data at hand.
type Directory interface {
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	User(ctx context.Context, userID string) (*discordgo.User, error)
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Members(ctx context.Context, guildID string) ([]*discordgo.Member, error)
}

// Env is the state of one evaluation pass. Functions read the context from it
// and fetched data is cached on it until the pass ends.
type Env struct {
	Context

	ctx    context.Context
	dir    Directory
	flight singleflight.Group

	mu      sync.Mutex
	fetched map[FetchKey]bool
	members []*discordgo.Member
}

func newEnv(ctx context.Context, dir Directory, c Context) *Env {
	return &Env{
		Context: c.withDefaults(),
		ctx:     ctx,
		dir:     dir,
		fetched: make(map[FetchKey]bool),
	}
}

func (env *Env) scopes() []Scope {
	scopes := make([]Scope, 0, numScopes)
	if env.Member != nil {
		scopes = append(scopes, ScopeMember)
	}
	if env.User != nil {
		scopes = append(scopes, ScopeUser)
	}
	if env.Role != nil {
		scopes = append(scopes, ScopeRole)
	}
	if env.Guild != nil {
		scopes = append(scopes, ScopeGuild)
	}
	return append(scopes, ScopeGlobal)
}

// Members returns the guild member list loaded by a FetchMembers request.
func (env *Env) Members() []*discordgo.Member {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.members
}

func (env *Env) isFetched(key FetchKey) bool {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.fetched[key]
}

// fetch loads key at most once per pass, collapsing concurrent requests.
func (env *Env) fetch(key FetchKey) error {
	if env.isFetched(key) {
		return nil
	}
	_, err, _ := env.flight.Do(string(key), func() (any, error) {
		if env.isFetched(key) {
			return nil, nil
		}
		if err := env.load(key); err != nil {
			return nil, err
		}
		env.mu.Lock()
		env.fetched[key] = true
		env.mu.Unlock()
		return nil, nil
	})
	return err
}

func (env *Env) load(key FetchKey) error {
	switch key {
	case FetchMembers:
		if env.Guild == nil {
			return evalErrorf("Member data is unavailable without a server.")
		}
		members := env.Guild.Members
		if env.dir != nil {
			var err error
			members, err = env.dir.Members(env.ctx, env.Guild.ID)
			if err != nil {
				return err
			}
		}
		env.mu.Lock()
		env.members = members
		env.mu.Unlock()
		return nil
	default:
		return errors.New("unknown fetch key " + string(key))
	}
}
