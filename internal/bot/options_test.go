package bot

import (
	"errors"
	"strings"
	"testing"

	"herald/internal/template"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func TestParseColor(t *testing.T) {
	cases := map[string]int{
		"#5865F2":   0x5865F2,
		"0xf97316":  0xF97316,
		"ffffff":    0xFFFFFF,
		" #000000 ": 0,
	}
	for in, want := range cases {
		got, err := parseColor(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "#", "red", "#1000000", "-1"} {
		_, err := parseColor(bad)
		require.Error(t, err, bad)
	}
}

func TestSchemaFromOptionsContentOnly(t *testing.T) {
	opts := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		stringOpt("kind", "welcome"),
		stringOpt("content", "Hi {mention}"),
	})
	schema, err := schemaFromOptions(opts)
	require.NoError(t, err)
	require.Equal(t, template.MessageSchema{Content: "Hi {mention}"}, schema)
}

func TestSchemaFromOptionsEmbed(t *testing.T) {
	opts := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		stringOpt("title", "{server}"),
		stringOpt("color", "#123456"),
		stringOpt("footer", "{members} members"),
		{Name: "timestamp", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
	})
	schema, err := schemaFromOptions(opts)
	require.NoError(t, err)
	require.Empty(t, schema.Content)
	require.Len(t, schema.Embeds, 1)

	embed := schema.Embeds[0]
	require.Equal(t, "{server}", embed.Title)
	require.Equal(t, 0x123456, embed.Color)
	require.Equal(t, template.ColorFixed, embed.ColorMode)
	require.True(t, embed.ShowTimestamp)
	require.Equal(t, "{members} members", embed.Footer.Text)
}

func TestSchemaFromOptionsErrors(t *testing.T) {
	_, err := schemaFromOptions(optionMap(nil))
	require.Error(t, err)

	_, err = schemaFromOptions(optionMap([]*discordgo.ApplicationCommandInteractionDataOption{stringOpt("color", "blue")}))
	require.ErrorContains(t, err, "hex color")
}

func TestCodeBlockEscapesFences(t *testing.T) {
	got := codeBlock("a ``` b")
	require.True(t, strings.HasPrefix(got, "```\n"))
	require.True(t, strings.HasSuffix(got, "\n```"))
	require.Equal(t, 2, strings.Count(got, "```"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 3))
	require.Equal(t, "ab…", truncate("abcd", 3))
	require.Equal(t, "éé…", truncate("éééé", 3))
}

func TestAnnotate(t *testing.T) {
	_, err := template.ParseText("Hi {nope}")
	require.Error(t, err)
	got := annotate(err, "Hi {nope}")
	require.Contains(t, got, "Unrecognized function: nope.")
	require.Contains(t, got, "^")

	require.Equal(t, "boom", annotate(errors.New("boom"), "x"))
}

func TestRenderErrorText(t *testing.T) {
	require.Equal(t, "Rendering failed.", renderErrorText(errors.New("dial tcp: refused")))
	_, err := template.ParseText("{+ 1")
	require.Error(t, err)
	require.Equal(t, err.Error(), renderErrorText(err))
}

func TestCommandDefinitions(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range commandDefinitions() {
		names[cmd.Name] = true
		require.NotNil(t, cmd.DefaultMemberPermissions, cmd.Name)
	}
	for _, want := range []string{"message", "stats", "template", "report"} {
		require.True(t, names[want], want)
	}
}
