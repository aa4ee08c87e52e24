package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Session is the part of *discordgo.Session the directory reads from.
type Session interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GuildWithCounts(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

var _ template.Directory = (*Directory)(nil)

// Directory loads live guild data over the Discord REST API.
type Directory struct {
	session  Session
	pageSize int
	logger   *zap.Logger
	flight   singleflight.Group
}

func New(session Session, pageSize int, logger *zap.Logger) *Directory {
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 1000
	}
	return &Directory{session: session, pageSize: pageSize, logger: logger}
}

func (d *Directory) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	member, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	member.GuildID = guildID
	return member, nil
}

func (d *Directory) User(ctx context.Context, userID string) (*discordgo.User, error) {
	user, err := d.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return user, nil
}

func (d *Directory) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	guild, err := d.session.GuildWithCounts(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return guild, nil
}

// Members pages through the full member list of guildID. Concurrent calls for
// the same guild share one walk.
func (d *Directory) Members(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	v, err, _ := d.flight.Do(guildID, func() (any, error) {
		return d.walkMembers(ctx, guildID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*discordgo.Member), nil
}

func (d *Directory) walkMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var (
		members []*discordgo.Member
		after   string
		pages   int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := d.session.GuildMembers(guildID, after, d.pageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch members of %s: %w", guildID, err)
		}
		pages++
		members = append(members, page...)
		if len(page) < d.pageSize {
			break
		}
		last := page[len(page)-1]
		if last == nil || last.User == nil {
			break
		}
		after = last.User.ID
	}
	d.logger.Debug("member list fetched", zap.String("guild_id", guildID), zap.Int("members", len(members)), zap.Int("pages", pages))
	return members, nil
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
