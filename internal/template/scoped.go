package template

import (
	"github.com/bwmarrin/discordgo"
)

const imageSize = "1024"

func getter(fn func(env *Env) Value) *Func {
	return &Func{Arity: Exactly(0), Apply: func(env *Env, _ []Value) (Value, error) {
		return fn(env), nil
	}}
}

func fetching(fn func(env *Env) Value) *Func {
	f := getter(fn)
	f.Fetch = []FetchKey{FetchMembers}
	return f
}

func registerMember(r *Registry) {
	r.Register(ScopeMember, "avatar", getter(func(env *Env) Value {
		if env.Member.User == nil {
			return String("")
		}
		return String(env.Member.AvatarURL(imageSize))
	}))
	r.Register(ScopeMember, "nickname", getter(func(env *Env) Value {
		if env.Member.Nick != "" {
			return String(env.Member.Nick)
		}
		return String(displayName(env.Member.User))
	}))
	r.Register(ScopeMember, "boosting?", getter(func(env *Env) Value {
		return Bool(env.Member.PremiumSince != nil)
	}))
}

func registerUser(r *Registry) {
	r.Register(ScopeUser, "mention", getter(func(env *Env) Value {
		return String(env.User.Mention())
	}))
	r.Register(ScopeUser, "display-name", getter(func(env *Env) Value {
		return String(displayName(env.User))
	}))
	r.Register(ScopeUser, "username", getter(func(env *Env) Value {
		return String(env.User.Username)
	}))
	r.Register(ScopeUser, "tag", getter(func(env *Env) Value {
		return String(env.User.String())
	}))
	r.Register(ScopeUser, "discriminator", getter(func(env *Env) Value {
		return String(env.User.Discriminator)
	}))
	r.Register(ScopeUser, "banner", getter(func(env *Env) Value {
		if env.User.Banner == "" {
			return String("")
		}
		return String(env.User.BannerURL(imageSize))
	}))
	r.Register(ScopeUser, "bot?", getter(func(env *Env) Value {
		return Bool(env.User.Bot)
	}))
	r.Register(ScopeUser, "global-avatar", getter(func(env *Env) Value {
		return String(env.User.AvatarURL(imageSize))
	}))
}

func registerRole(r *Registry) {
	r.Register(ScopeRole, "role-icon", getter(func(env *Env) Value {
		return String(env.Role.IconURL(imageSize))
	}))
	r.Register(ScopeRole, "role-members", fetching(func(env *Env) Value {
		count := 0
		for _, member := range env.Members() {
			if hasRole(member, env.Role.ID) {
				count++
			}
		}
		return Number(float64(count))
	}))
	r.Register(ScopeRole, "role-name", getter(func(env *Env) Value {
		return String(env.Role.Name)
	}))
	r.Register(ScopeRole, "hoisted?", getter(func(env *Env) Value {
		return Bool(env.Role.Hoist)
	}))
}

func registerGuild(r *Registry) {
	r.Register(ScopeGuild, "server", getter(func(env *Env) Value {
		return String(env.Guild.Name)
	}))
	r.Register(ScopeGuild, "members", fetching(func(env *Env) Value {
		return Number(float64(len(env.Members())))
	}))
	r.Register(ScopeGuild, "boosts", getter(func(env *Env) Value {
		return Number(float64(env.Guild.PremiumSubscriptionCount))
	}))
	r.Register(ScopeGuild, "tier", getter(func(env *Env) Value {
		return Number(float64(env.Guild.PremiumTier))
	}))
	r.Register(ScopeGuild, "server-icon", getter(func(env *Env) Value {
		if env.Guild.Icon == "" {
			return String("")
		}
		return String(env.Guild.IconURL(imageSize))
	}))
	r.Register(ScopeGuild, "server-banner", getter(func(env *Env) Value {
		if env.Guild.Banner == "" {
			return String("")
		}
		return String(env.Guild.BannerURL(imageSize))
	}))
	r.Register(ScopeGuild, "server-splash", getter(func(env *Env) Value {
		if env.Guild.Splash == "" {
			return String("")
		}
		return String(discordgo.EndpointGuildSplash(env.Guild.ID, env.Guild.Splash) + "?size=" + imageSize)
	}))
	r.Register(ScopeGuild, "bots", fetching(func(env *Env) Value {
		return Number(float64(countMembers(env.Members(), func(m *discordgo.Member) bool {
			return m.User != nil && m.User.Bot
		})))
	}))
	r.Register(ScopeGuild, "humans", fetching(func(env *Env) Value {
		return Number(float64(countMembers(env.Members(), func(m *discordgo.Member) bool {
			return m.User == nil || !m.User.Bot
		})))
	}))
	r.Register(ScopeGuild, "boosters", fetching(func(env *Env) Value {
		return Number(float64(countMembers(env.Members(), func(m *discordgo.Member) bool {
			return m.PremiumSince != nil
		})))
	}))
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

func countMembers(members []*discordgo.Member, match func(*discordgo.Member) bool) int {
	count := 0
	for _, m := range members {
		if m != nil && match(m) {
			count++
		}
	}
	return count
}
