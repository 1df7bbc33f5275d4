package execctx

import (
	"strconv"
	"strings"
)

// installBuiltins registers the builtin callables §3a enumerates into the
// given scope (always globals, so they remain visible after a locals clear).
func installBuiltins(globals *Env, write func(string)) {
	reg := func(name string, fn builtinFunc) {
		globals.set(name, &builtinValue{name: name, fn: fn})
	}
	reg("print", func(args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = str(a)
		}
		write(strings.Join(parts, " ") + "\n")
		return nil, nil
	})
	reg("len", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newEvalError("TypeError", "len() takes exactly one argument (%d given)", len(args))
		}
		switch x := args[0].(type) {
		case string:
			return int64(len([]rune(x))), nil
		case *listValue:
			return int64(len(x.items)), nil
		case *dictValue:
			return int64(len(x.keys)), nil
		default:
			return nil, newEvalError("TypeError", "object of type '%s' has no len()", typeName(args[0]))
		}
	})
	reg("str", func(args []Value) (Value, error) {
		if len(args) == 0 {
			return "", nil
		}
		return str(args[0]), nil
	})
	reg("repr", func(args []Value) (Value, error) {
		if len(args) == 0 {
			return "", nil
		}
		return repr(args[0]), nil
	})
	reg("type", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newEvalError("TypeError", "type() takes exactly one argument (%d given)", len(args))
		}
		return typeName(args[0]), nil
	})
	reg("int", func(args []Value) (Value, error) {
		if len(args) == 0 {
			return int64(0), nil
		}
		switch x := args[0].(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, newEvalError("ValueError", "invalid literal for int() with base 10: %s", repr(x))
			}
			return n, nil
		}
		return nil, newEvalError("TypeError", "int() argument must be a string or a number")
	})
	reg("float", func(args []Value) (Value, error) {
		if len(args) == 0 {
			return float64(0), nil
		}
		switch x := args[0].(type) {
		case int64:
			return float64(x), nil
		case float64:
			return x, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, newEvalError("ValueError", "could not convert string to float: %s", repr(x))
			}
			return f, nil
		}
		return nil, newEvalError("TypeError", "float() argument must be a string or a number")
	})
	reg("range", func(args []Value) (Value, error) {
		var start, stop, step int64 = 0, 0, 1
		switch len(args) {
		case 1:
			n, ok := args[0].(int64)
			if !ok {
				return nil, newEvalError("TypeError", "'%s' object cannot be interpreted as an integer", typeName(args[0]))
			}
			stop = n
		case 2:
			s, ok1 := args[0].(int64)
			e, ok2 := args[1].(int64)
			if !ok1 || !ok2 {
				return nil, newEvalError("TypeError", "range() arguments must be integers")
			}
			start, stop = s, e
		case 3:
			s, ok1 := args[0].(int64)
			e, ok2 := args[1].(int64)
			st, ok3 := args[2].(int64)
			if !ok1 || !ok2 || !ok3 {
				return nil, newEvalError("TypeError", "range() arguments must be integers")
			}
			start, stop, step = s, e, st
		default:
			return nil, newEvalError("TypeError", "range expected 1 to 3 arguments, got %d", len(args))
		}
		if step == 0 {
			return nil, newEvalError("ValueError", "range() arg 3 must not be zero")
		}
		var items []Value
		if step > 0 {
			for i := start; i < stop; i += step {
				items = append(items, i)
			}
		} else {
			for i := start; i > stop; i += step {
				items = append(items, i)
			}
		}
		return &listValue{items: items}, nil
	})
}
