package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var valueComparer = cmp.Comparer(Equal)

func lit(s string) *Literal { return &Literal{Value: String(s)} }
func num(n float64) *Literal { return &Literal{Value: Number(n)} }
func call(name string, args ...Node) *Call {
	if args == nil {
		args = []Node{}
	}
	return &Call{Name: name, Args: args}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Text
	}{
		{name: "empty", input: "", want: Text{}},
		{name: "plain", input: "hello world", want: Text{lit("hello world")}},
		{name: "escaped brace", input: `a\{b`, want: Text{lit("a{b")}},
		{name: "escaped backslash", input: `a\\b`, want: Text{lit(`a\b`)}},
		{name: "unknown escape keeps backslash", input: `a\nb`, want: Text{lit(`a\nb`)}},
		{name: "trailing backslash", input: `a\`, want: Text{lit(`a\`)}},
		{name: "closing brace is literal", input: "a}b", want: Text{lit("a}b")}},
		{name: "call", input: "Hi {mention}!", want: Text{lit("Hi "), call("mention"), lit("!")}},
		{name: "nested", input: "{ordinal {members}}", want: Text{call("ordinal", call("members"))}},
		{name: "whitespace between tokens", input: "{  +   1\n\t2  }", want: Text{call("+", num(1), num(2))}},
		{name: "adjacent tokens", input: "{+ 1{+ 2 3}'x'}", want: Text{call("+", num(1), call("+", num(2), num(3)), lit("x"))}},
		{name: "negative and fractional", input: "{+ -1.5 .5 3.}", want: Text{call("+", num(-1.5), num(0.5), num(3))}},
		{name: "double quoted", input: `{join {list "a" 'b'} ", "}`, want: Text{call("join", call("list", lit("a"), lit("b")), lit(", "))}},
		{name: "string escapes", input: `{! "a\tb\n\\\"\'\q"}`, want: Text{call("!", lit("a\tb\n\\\"'\\q"))}},
		{name: "braces inside strings", input: `{! "{}"}`, want: Text{call("!", lit("{}"))}},
		{name: "symbolic names", input: `{\ 7 2}{!= 1 2}{# {list 1} 0}`, want: Text{
			call(`\`, num(7), num(2)),
			call("!=", num(1), num(2)),
			call("#", call("list", num(1)), num(0)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseText(tt.input)
			if err != nil {
				t.Fatalf("ParseText(%q): %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got, valueComparer); diff != "" {
				t.Fatalf("ParseText(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
		wantPos int
	}{
		{name: "unknown function", input: "hi {nope}", wantMsg: "Unrecognized function: nope.", wantPos: 4},
		{name: "case sensitive", input: "{Mention}", wantMsg: "Unrecognized function: Mention."},
		{name: "unclosed call", input: "{mention", wantMsg: "Unterminated expression"},
		{name: "empty call", input: "{}", wantMsg: "Expected a function name"},
		{name: "bare open", input: "abc {", wantMsg: "Unterminated expression"},
		{name: "unterminated string", input: `{! "abc}`, wantMsg: "Unterminated string"},
		{name: "unterminated escape", input: `{! "abc\`, wantMsg: "Unterminated string"},
		{name: "exact arity", input: "{ordinal}", wantMsg: "`ordinal` expected 1 argument but got 0."},
		{name: "exact arity plural", input: "{join 1}", wantMsg: "`join` expected 2 arguments but got 1."},
		{name: "at least", input: "{+ }", wantMsg: "`+` expected at least 1 argument but got 0."},
		{name: "at least plural", input: "{!= 1}", wantMsg: "`!=` expected at least 2 arguments but got 1."},
		{name: "between", input: "{? 1 2 3 4}", wantMsg: "`?` expected between 2 and 3 arguments but got 4."},
		{name: "too many for getter", input: "{mention 1}", wantMsg: "`mention` expected 0 arguments but got 1."},
		{name: "unexpected token", input: "{+ 1 abcdefghijklmnop}", wantMsg: `Expected ` + "`}`" + `, ` + "`{`" + `, a string, or a number but found "abcdefghij".`, wantPos: 5},
		{name: "minus without digit", input: "{+ -x}", wantMsg: "but found \"-x}\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(tt.input)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			var terr *Error
			if !errors.As(err, &terr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if !strings.Contains(terr.Msg, tt.wantMsg) {
				t.Fatalf("expected message containing %q, got %q", tt.wantMsg, terr.Msg)
			}
			if tt.wantPos != 0 && terr.Pos != tt.wantPos {
				t.Fatalf("expected position %d, got %d", tt.wantPos, terr.Pos)
			}
		})
	}
}

func nested(depth int) string {
	return strings.Repeat("{! ", depth-1) + "{! 1}" + strings.Repeat("}", depth-1)
}

func TestParseDepthLimit(t *testing.T) {
	if _, err := ParseText(nested(10)); err != nil {
		t.Fatalf("expected 10 levels to parse, got %v", err)
	}
	_, err := ParseText(nested(11))
	if err == nil || err.Error() != "message data is too deep" {
		t.Fatalf("expected too deep error, got %v", err)
	}
}

func TestParseMessage(t *testing.T) {
	schema := MessageSchema{
		Content: "Welcome {mention}",
		Embeds: []Embed[string]{{
			Title:         "{server}",
			Description:   "plain",
			ColorMode:     ColorMember,
			Color:         0xff0000,
			ShowTimestamp: true,
			Fields:        []EmbedField[string]{{Name: "Count", Value: "{members}", Inline: true}},
		}},
	}

	parsed, err := ParseMessage(schema, false)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	want := ParsedMessage{
		Content: Text{lit("Welcome "), call("mention")},
		Embeds: []Embed[Text]{{
			Author:        EmbedAuthor[Text]{Name: Text{}, IconURL: Text{}, URL: Text{}},
			Title:         Text{call("server")},
			Description:   Text{lit("plain")},
			URL:           Text{},
			Image:         Text{},
			Thumbnail:     Text{},
			Footer:        EmbedFooter[Text]{Text: Text{}, IconURL: Text{}},
			ColorMode:     ColorMember,
			Color:         0xff0000,
			ShowTimestamp: true,
			Fields:        []EmbedField[Text]{{Name: Text{lit("Count")}, Value: Text{call("members")}, Inline: true}},
		}},
	}
	if diff := cmp.Diff(want, parsed, valueComparer); diff != "" {
		t.Fatalf("ParseMessage mismatch (-want +got):\n%s", diff)
	}

	static, err := ParseMessage(MessageSchema{Content: "{not a function"}, true)
	if err != nil {
		t.Fatalf("static ParseMessage: %v", err)
	}
	if len(static.Content) != 0 {
		t.Fatalf("expected empty static content, got %v", static.Content)
	}

	if _, err := ParseMessage(MessageSchema{Embeds: []Embed[string]{{Footer: EmbedFooter[string]{Text: "{bogus}"}}}}, false); err == nil {
		t.Fatalf("expected error from embed footer")
	}
}

func TestTextJSON(t *testing.T) {
	text, err := ParseText(`Hi {mention}, {? {> {members} 10} "big" 'small'} {+ 1.5 -2}`)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	data, err := text.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Text
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(text, decoded, valueComparer); diff != "" {
		t.Fatalf("decoded text mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(string(data), `{"fn":"mention","args":[]}`) {
		t.Fatalf("unexpected encoding: %s", data)
	}
}

func TestErrorAnnotate(t *testing.T) {
	src := "Welcome!\nYou are {ordinal {nope}}"
	_, err := ParseText(src)
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	want := "Unrecognized function: nope.\nYou are {ordinal {nope}}\n                  ^ (line 2, column 19)"
	if got := terr.Annotate(src); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	eval := &Error{Msg: "boom", Pos: -1}
	if got := eval.Annotate(src); got != "boom" {
		t.Fatalf("expected bare message, got %q", got)
	}
}
