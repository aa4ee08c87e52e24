package template

import (
	"fmt"
	"strings"
)

const errTooDeep = "message data is too deep"

// Error is a parse or evaluation failure. Msg is safe to show to whoever
// authored the template.
type Error struct {
	Msg string
	// Pos is the rune offset in the source text, or -1 when the error did not
	// come from the parser.
	Pos int
}

func (e *Error) Error() string { return e.Msg }

func errorf(pos int, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Pos: pos}
}

func evalErrorf(format string, args ...any) *Error {
	return errorf(-1, format, args...)
}

func unrecognized(pos int, name string) *Error {
	return errorf(pos, "Unrecognized function: %s.", name)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Annotate renders the line of src containing the error with a caret under
// the offending position. Errors without a position return just the message.
func (e *Error) Annotate(src string) string {
	runes := []rune(src)
	if e.Pos < 0 || e.Pos > len(runes) {
		return e.Msg
	}
	start := e.Pos
	for start > 0 && runes[start-1] != '\n' {
		start--
	}
	end := e.Pos
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	line := 1
	for _, r := range runes[:start] {
		if r == '\n' {
			line++
		}
	}
	col := e.Pos - start
	return fmt.Sprintf("%s\n%s\n%s^ (line %d, column %d)", e.Msg, string(runes[start:end]), strings.Repeat(" ", col), line, col+1)
}
