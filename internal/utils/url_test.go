package utils

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestEmbedURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://Example.com/a.png?size=1024", "https://example.com/a.png?size=1024", true},
		{"  http://cdn.example.com:8080/x ", "http://cdn.example.com:8080/x", true},
		{"https://bücher.example/cover.png", "https://xn--bcher-kva.example/cover.png", true},
		{"https://user:pw@example.com/", "https://example.com/", true},
		{"", "", false},
		{"example.com/a.png", "", false},
		{"javascript:alert(1)", "", false},
		{"ftp://example.com/file", "", false},
		{"https:///nohost", "", false},
	}
	for _, tt := range tests {
		got, ok := EmbedURL(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("EmbedURL(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSanitizeEmbeds(t *testing.T) {
	embeds := []*discordgo.MessageEmbed{{
		URL:       "not a url",
		Author:    &discordgo.MessageEmbedAuthor{Name: "a", IconURL: "https://EXAMPLE.com/i.png"},
		Image:     &discordgo.MessageEmbedImage{URL: ""},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: "https://example.com/t.png"},
		Footer:    &discordgo.MessageEmbedFooter{Text: "f", IconURL: "data:image/png;base64,xx"},
	}, nil}

	SanitizeEmbeds(embeds)

	embed := embeds[0]
	if embed.URL != "" {
		t.Fatalf("expected invalid url to be cleared, got %q", embed.URL)
	}
	if embed.Author.IconURL != "https://example.com/i.png" {
		t.Fatalf("unexpected author icon %q", embed.Author.IconURL)
	}
	if embed.Image != nil {
		t.Fatalf("expected empty image to be dropped")
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://example.com/t.png" {
		t.Fatalf("unexpected thumbnail %+v", embed.Thumbnail)
	}
	if embed.Footer.IconURL != "" {
		t.Fatalf("expected data url to be cleared, got %q", embed.Footer.IconURL)
	}
}
