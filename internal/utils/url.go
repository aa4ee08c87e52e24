package utils

import (
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/net/idna"
)

// EmbedURL cleans a rendered URL for an embed slot. Discord rejects the whole
// message when any embed URL is not absolute http(s), so callers drop the
// slot when ok is false.
func EmbedURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", false
	}
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", false
	}
	if port := parsed.Port(); port != "" {
		asciiHost += ":" + port
	}
	parsed.Host = asciiHost
	parsed.User = nil
	return parsed.String(), true
}

// SanitizeEmbeds rewrites every URL slot of embeds in place, clearing the
// ones Discord would refuse.
func SanitizeEmbeds(embeds []*discordgo.MessageEmbed) {
	for _, embed := range embeds {
		if embed == nil {
			continue
		}
		embed.URL = cleanOrEmpty(embed.URL)
		if embed.Author != nil {
			embed.Author.URL = cleanOrEmpty(embed.Author.URL)
			embed.Author.IconURL = cleanOrEmpty(embed.Author.IconURL)
		}
		if embed.Footer != nil {
			embed.Footer.IconURL = cleanOrEmpty(embed.Footer.IconURL)
		}
		if embed.Image != nil {
			if cleaned, ok := EmbedURL(embed.Image.URL); ok {
				embed.Image.URL = cleaned
			} else {
				embed.Image = nil
			}
		}
		if embed.Thumbnail != nil {
			if cleaned, ok := EmbedURL(embed.Thumbnail.URL); ok {
				embed.Thumbnail.URL = cleaned
			} else {
				embed.Thumbnail = nil
			}
		}
	}
}

func cleanOrEmpty(raw string) string {
	cleaned, _ := EmbedURL(raw)
	return cleaned
}
