package template

import (
	"fmt"
	"sort"
)

type Scope uint8

const (
	ScopeMember Scope = iota
	ScopeUser
	ScopeRole
	ScopeGuild
	ScopeGlobal
	numScopes
)

func (s Scope) String() string {
	switch s {
	case ScopeMember:
		return "member"
	case ScopeUser:
		return "user"
	case ScopeRole:
		return "role"
	case ScopeGuild:
		return "guild"
	default:
		return "global"
	}
}

// Unbounded marks an arity without an upper limit.
const Unbounded = -1

type Arity struct {
	Min int
	Max int
}

func Exactly(n int) Arity { return Arity{Min: n, Max: n} }
func AtLeast(n int) Arity { return Arity{Min: n, Max: Unbounded} }
func Between(lo, hi int) Arity { return Arity{Min: lo, Max: hi} }

func (a Arity) Allows(n int) bool {
	return n >= a.Min && (a.Max == Unbounded || n <= a.Max)
}

func (a Arity) check(pos int, name string, got int) *Error {
	if a.Allows(got) {
		return nil
	}
	switch {
	case a.Min == a.Max:
		return errorf(pos, "`%s` expected %s but got %d.", name, plural(a.Min, "argument"), got)
	case a.Max == Unbounded:
		return errorf(pos, "`%s` expected at least %s but got %d.", name, plural(a.Min, "argument"), got)
	default:
		return errorf(pos, "`%s` expected between %d and %s but got %d.", name, a.Min, plural(a.Max, "argument"), got)
	}
}

type FetchKey string

const FetchMembers FetchKey = "members"

// Func describes one template function.
type Func struct {
	Arity Arity
	// Fetch names context data that must be loaded before Apply runs.
	Fetch []FetchKey
	Apply func(env *Env, args []Value) (Value, error)
}

// Registry holds the scoped function tables. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	scopes [numScopes]map[string]*Func
	flat   map[string]*Func
}

func NewRegistry() *Registry {
	r := &Registry{flat: make(map[string]*Func)}
	for i := range r.scopes {
		r.scopes[i] = make(map[string]*Func)
	}
	return r
}

// Register adds fn under name in scope. It panics on a duplicate name, since
// the parser resolves names against the union of all scopes.
func (r *Registry) Register(scope Scope, name string, fn *Func) {
	if _, exists := r.flat[name]; exists {
		panic(fmt.Sprintf("template: function %q registered twice", name))
	}
	r.scopes[scope][name] = fn
	r.flat[name] = fn
}

func (r *Registry) Lookup(name string) (*Func, bool) {
	fn, ok := r.flat[name]
	return fn, ok
}

// Resolve finds name in the scopes that env makes available, most specific
// first.
func (r *Registry) Resolve(env *Env, name string) (*Func, bool) {
	for _, scope := range env.scopes() {
		if fn, ok := r.scopes[scope][name]; ok {
			return fn, true
		}
	}
	return nil, false
}

func (r *Registry) Names(scope Scope) []string {
	names := make([]string, 0, len(r.scopes[scope]))
	for name := range r.scopes[scope] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = newDefaultRegistry()

// Default returns the registry with the built-in function library.
func Default() *Registry { return defaultRegistry }

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	registerMember(r)
	registerUser(r)
	registerRole(r)
	registerGuild(r)
	registerGlobal(r)
	return r
}
