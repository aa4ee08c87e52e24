package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testFixture = `
guild:
  id: "g1"
  name: Herald HQ
  boosts: 4
  humans: 2
  bots: 1
  roles:
    - {id: r1, name: Mods, color: 0x112233, position: 2}
member:
  user: {id: "u1", username: ann, global_name: Ann}
  nick: Annie
  roles: [r1]
role: r1
`

const testMessage = `
content: "Welcome {mention} to {server}!"
embeds:
  - title: "You are member #{members}"
    description: "{role-name} has {role-members} member"
    color_mode: member
    image: "not a url"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckValidFile(t *testing.T) {
	out, err := run(t, "check", writeFile(t, "msg.yaml", testMessage))
	require.NoError(t, err)
	require.Equal(t, "ok\n", out)
}

func TestCheckReportsErrors(t *testing.T) {
	out, err := run(t, "check", "--text", "Hi {nope}")
	require.Error(t, err)
	require.True(t, errors.Is(err, errInvalid))
	require.Contains(t, out, "content: Unrecognized function: nope.")
	require.Contains(t, out, "(line 1, column 5)")
}

func TestCheckNeedsInput(t *testing.T) {
	_, err := run(t, "check")
	require.Error(t, err)

	_, err = run(t, "check", "a.yaml", "--text", "x")
	require.ErrorContains(t, err, "not both")
}

func TestRenderText(t *testing.T) {
	ctxPath := writeFile(t, "ctx.yaml", testFixture)
	out, err := run(t, "render", "--context", ctxPath, "--text", "{nickname} joins {server} ({humans} humans, {bots} bots, {boosts} boosts)")
	require.NoError(t, err)
	require.Equal(t, "Annie joins Herald HQ (3 humans, 1 bots, 4 boosts)\n", out)
}

func TestRenderMessage(t *testing.T) {
	ctxPath := writeFile(t, "ctx.yaml", testFixture)
	out, err := run(t, "render", writeFile(t, "msg.yaml", testMessage), "-c", ctxPath, "--now", "2024-01-02T03:04:05Z")
	require.NoError(t, err)

	var send struct {
		Content string `json:"content"`
		Embeds  []struct {
			Title       string          `json:"title"`
			Description string          `json:"description"`
			Color       int             `json:"color"`
			Image       json.RawMessage `json:"image"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &send))
	require.Equal(t, "Welcome <@u1> to Herald HQ!", send.Content)
	require.Len(t, send.Embeds, 1)
	require.Equal(t, "You are member #4", send.Embeds[0].Title)
	require.Equal(t, "Mods has 1 member", send.Embeds[0].Description)
	require.Equal(t, 0x112233, send.Embeds[0].Color)
	require.Empty(t, send.Embeds[0].Image)
}

func TestRenderUnknownRole(t *testing.T) {
	ctxPath := writeFile(t, "ctx.yaml", strings.Replace(testFixture, "role: r1", "role: r9", 1))
	_, err := run(t, "render", "--context", ctxPath, "--text", "{server}")
	require.ErrorContains(t, err, "role r9")
}

func TestFunctionsListsScopes(t *testing.T) {
	out, err := run(t, "functions")
	require.NoError(t, err)
	require.Contains(t, out, "global:\n")
	require.Contains(t, out, "  ordinal\n")
	require.Contains(t, out, "guild:\n")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "heraldctl dev\n", out)
}

func TestSchemaDescribesMessageFiles(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties: %s", out)
	require.Contains(t, props, "content")
	require.Contains(t, props, "embeds")
	require.Contains(t, out, "color_mode")
}
