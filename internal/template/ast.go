package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Node is a parsed template expression: a *Literal or a *Call.
type Node interface {
	node()
	String() string
}

type Literal struct {
	Value Value
}

type Call struct {
	Name string
	Args []Node
}

func (*Literal) node() {}
func (*Call) node()    {}

func (l *Literal) String() string {
	if l.Value.Kind() == KindNumber {
		return l.Value.String()
	}
	return strconv.Quote(l.Value.String())
}

func (c *Call) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	sb.WriteString(c.Name)
	for _, arg := range c.Args {
		sb.WriteString(" ")
		sb.WriteString(arg.String())
	}
	sb.WriteString("}")
	return sb.String()
}

// Text is one authorable text field after parsing. Segments are literal
// strings or calls and concatenate in order.
type Text []Node

func (t Text) IsStatic() bool {
	for _, seg := range t {
		if _, ok := seg.(*Call); ok {
			return false
		}
	}
	return true
}

// Persisted form: a literal is a JSON string or number, a call is
// {"fn": name, "args": [...]}, and Text is an array of those.

type callJSON struct {
	Fn   string            `json:"fn"`
	Args []json.RawMessage `json:"args"`
}

func (l *Literal) MarshalJSON() ([]byte, error) {
	if l.Value.Kind() == KindNumber {
		return json.Marshal(l.Value.AsNumber())
	}
	if l.Value.Kind() == KindList {
		return nil, errors.New("list literals cannot be persisted")
	}
	return json.Marshal(l.Value.String())
}

func (c *Call) MarshalJSON() ([]byte, error) {
	out := callJSON{Fn: c.Name, Args: make([]json.RawMessage, 0, len(c.Args))}
	for _, arg := range c.Args {
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, data)
	}
	return json.Marshal(out)
}

func (t Text) MarshalJSON() ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(t))
	for _, seg := range t {
		data, err := json.Marshal(seg)
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}
	return json.Marshal(parts)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	out := make(Text, 0, len(parts))
	for _, part := range parts {
		node, err := decodeNode(part, 0)
		if err != nil {
			return err
		}
		out = append(out, node)
	}
	*t = out
	return nil
}

func decodeNode(data json.RawMessage, depth int) (Node, error) {
	if depth > maxDepth {
		return nil, errors.New(errTooDeep)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty template node")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return &Literal{Value: String(s)}, nil
	case '{':
		var raw callJSON
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
		if raw.Fn == "" {
			return nil, errors.New("template call without a function name")
		}
		call := &Call{Name: raw.Fn, Args: make([]Node, 0, len(raw.Args))}
		for _, arg := range raw.Args {
			node, err := decodeNode(arg, depth+1)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, node)
		}
		return call, nil
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, fmt.Errorf("invalid template node %s", trimmed)
		}
		return &Literal{Value: Number(n)}, nil
	}
}
