package template

import (
	"math"
	"math/rand/v2"
	"strings"
)

func registerGlobal(r *Registry) {
	r.Register(ScopeGlobal, "?", &Func{Arity: Between(2, 3), Apply: ternary})
	r.Register(ScopeGlobal, "!=", &Func{Arity: AtLeast(2), Apply: distinct})
	r.Register(ScopeGlobal, "random", &Func{Arity: AtLeast(1), Apply: pickRandom})
	r.Register(ScopeGlobal, "list", &Func{Arity: AtLeast(0), Apply: func(_ *Env, args []Value) (Value, error) {
		return List(append([]Value{}, args...)...), nil
	}})
	r.Register(ScopeGlobal, "!", &Func{Arity: Exactly(1), Apply: func(_ *Env, args []Value) (Value, error) {
		return Bool(!args[0].Truthy()), nil
	}})
	r.Register(ScopeGlobal, "length", &Func{Arity: Exactly(1), Apply: func(_ *Env, args []Value) (Value, error) {
		return length("length", args[0])
	}})
	r.Register(ScopeGlobal, "ordinal", &Func{Arity: Exactly(1), Apply: ordinal})
	r.Register(ScopeGlobal, "join", &Func{Arity: Exactly(2), Apply: join})

	r.Register(ScopeGlobal, "+", arithmetic(func(a, b float64) float64 { return a + b }))
	r.Register(ScopeGlobal, "-", arithmetic(func(a, b float64) float64 { return a - b }))
	r.Register(ScopeGlobal, "*", arithmetic(func(a, b float64) float64 { return a * b }))
	r.Register(ScopeGlobal, "/", arithmetic(func(a, b float64) float64 { return a / b }))
	r.Register(ScopeGlobal, `\`, arithmetic(func(a, b float64) float64 { return math.Floor(a / b) }))
	r.Register(ScopeGlobal, "%", arithmetic(math.Mod))
	r.Register(ScopeGlobal, "^", arithmetic(math.Pow))

	r.Register(ScopeGlobal, "#", &Func{Arity: AtLeast(1), Apply: index})
	r.Register(ScopeGlobal, "&&", &Func{Arity: AtLeast(1), Apply: func(_ *Env, args []Value) (Value, error) {
		result := args[0]
		for _, arg := range args[1:] {
			if !result.Truthy() {
				break
			}
			result = arg
		}
		return result, nil
	}})
	r.Register(ScopeGlobal, "||", &Func{Arity: AtLeast(1), Apply: func(_ *Env, args []Value) (Value, error) {
		result := args[0]
		for _, arg := range args[1:] {
			if result.Truthy() {
				break
			}
			result = arg
		}
		return result, nil
	}})
	r.Register(ScopeGlobal, "++", &Func{Arity: AtLeast(1), Apply: concat})
	r.Register(ScopeGlobal, "=", &Func{Arity: AtLeast(1), Apply: func(_ *Env, args []Value) (Value, error) {
		for _, arg := range args[1:] {
			if !Equal(args[0], arg) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	}})

	r.Register(ScopeGlobal, ">", comparison(func(a, b float64) bool { return a > b }))
	r.Register(ScopeGlobal, ">=", comparison(func(a, b float64) bool { return a >= b }))
	r.Register(ScopeGlobal, "<", comparison(func(a, b float64) bool { return a < b }))
	r.Register(ScopeGlobal, "<=", comparison(func(a, b float64) bool { return a <= b }))
}

func ternary(_ *Env, args []Value) (Value, error) {
	if args[0].Truthy() {
		return args[1], nil
	}
	if len(args) > 2 {
		return args[2], nil
	}
	return String(""), nil
}

func distinct(_ *Env, args []Value) (Value, error) {
	for i := range args {
		for j := i + 1; j < len(args); j++ {
			if Equal(args[i], args[j]) {
				return Bool(false), nil
			}
		}
	}
	return Bool(true), nil
}

func pickRandom(_ *Env, args []Value) (Value, error) {
	return args[rand.IntN(len(args))], nil
}

func length(name string, v Value) (Value, error) {
	items, ok := v.AsList()
	if !ok {
		return Value{}, evalErrorf("`%s` expected a list but got a %s.", name, v.Kind())
	}
	return Number(float64(len(items))), nil
}

func ordinal(_ *Env, args []Value) (Value, error) {
	v := args[0]
	if v.Kind() != KindNumber {
		return Value{}, evalErrorf("`ordinal` expected a number but got a %s.", v.Kind())
	}
	n := v.AsNumber()
	if math.IsNaN(n) || math.IsInf(n, 0) || math.Trunc(n) != n {
		return Value{}, evalErrorf("`ordinal` expected an integer but got %s.", FormatNumber(n))
	}
	abs := math.Abs(n)
	suffix := "th"
	if math.Mod(math.Floor(abs/10), 10) != 1 {
		switch math.Mod(abs, 10) {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return String(FormatNumber(n) + suffix), nil
}

func join(_ *Env, args []Value) (Value, error) {
	items, ok := args[0].AsList()
	if !ok {
		return String(args[0].String()), nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return String(strings.Join(parts, args[1].String())), nil
}

func arithmetic(op func(a, b float64) float64) *Func {
	return &Func{Arity: AtLeast(1), Apply: func(_ *Env, args []Value) (Value, error) {
		acc := args[0].AsNumber()
		for _, arg := range args[1:] {
			acc = op(acc, arg.AsNumber())
		}
		return Number(acc), nil
	}}
}

func comparison(ok func(a, b float64) bool) *Func {
	return &Func{Arity: AtLeast(1), Apply: func(_ *Env, args []Value) (Value, error) {
		for i := 1; i < len(args); i++ {
			if !ok(args[i-1].AsNumber(), args[i].AsNumber()) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	}}
}

func index(_ *Env, args []Value) (Value, error) {
	if len(args) == 1 {
		return length("#", args[0])
	}
	current := args[0]
	for _, arg := range args[1:] {
		items, ok := current.AsList()
		if !ok {
			return Value{}, evalErrorf("`#` cannot index into a %s.", current.Kind())
		}
		i := arg.AsNumber()
		if math.Trunc(i) != i || i < 0 || i >= float64(len(items)) {
			return Value{}, evalErrorf("`#` index %s is out of range for a list of length %d.", arg.String(), len(items))
		}
		current = items[int(i)]
	}
	return current, nil
}

func concat(_ *Env, args []Value) (Value, error) {
	var out []Value
	for _, arg := range args {
		if items, ok := arg.AsList(); ok {
			out = append(out, items...)
			continue
		}
		out = append(out, arg)
	}
	return List(out...), nil
}
