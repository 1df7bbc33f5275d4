package execctx

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Value is any runtime value produced by evaluating the supported subset:
// nil, bool, int64, float64, string, *listValue, *dictValue, *funcValue, or
// a builtinValue. A tagged Go interface stands in for CPython's object
// model, per SPEC_FULL.md §3a/§9 (no reflection over live Python objects).
type Value interface{}

type listValue struct {
	items []Value
}

type dictValue struct {
	keys   []string
	values map[string]Value
}

func newDict() *dictValue {
	return &dictValue{values: make(map[string]Value)}
}

func (d *dictValue) set(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *dictValue) get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// funcValue is a user-defined function: `def name(params): body`.
type funcValue struct {
	name   string
	params []string
	body   []stmt
	// closure captures globals at definition time; this subset has no true
	// lexical closures over enclosing locals, matching the flat locals/
	// globals model the spec's data model requires.
	closure *Env
}

type builtinFunc func(args []Value) (Value, error)

type builtinValue struct {
	name string
	fn   builtinFunc
}

func isTruthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *listValue:
		return len(x.items) > 0
	case *dictValue:
		return len(x.keys) > 0
	default:
		return true
	}
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *listValue:
		return "list"
	case *dictValue:
		return "dict"
	case *funcValue:
		return "function"
	case *builtinValue:
		return "builtin_function_or_method"
	case *historySeq:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// repr renders a value the way CPython's repr() would for the scalar
// subset this evaluator supports, used for display_object and In/Out.
func repr(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strings.ToLower(strings.TrimPrefix(strconv.FormatFloat(x, 'g', -1, 64), "+"))
		}
		if a := math.Abs(x); a != 0 && (a < 1e-4 || a >= 1e16) {
			return strconv.FormatFloat(x, 'e', -1, 64)
		}
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	case *listValue:
		parts := make([]string, len(x.items))
		for i, it := range x.items {
			parts[i] = repr(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *dictValue:
		parts := make([]string, 0, len(x.keys))
		for _, k := range x.keys {
			parts = append(parts, fmt.Sprintf("%s: %s", repr(k), repr(x.values[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *funcValue:
		return fmt.Sprintf("<function %s>", x.name)
	case *builtinValue:
		return fmt.Sprintf("<built-in function %s>", x.name)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// str renders a value the way CPython's str() would (bare strings have no
// quotes, unlike repr).
func str(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return repr(v)
}

// Repr exposes repr() to other packages for rendering a display_object into
// an execute_result's "text/plain" mimebundle (§4.4).
func Repr(v Value) string { return repr(v) }

// sortedDictKeys returns a dict's keys in public/dunder/private order, the
// same ordering §4.4's attribute completion uses.
func sortedDictKeys(d *dictValue) []string {
	var pub, dunder, priv []string
	for _, k := range d.keys {
		switch {
		case strings.HasPrefix(k, "__") && strings.HasSuffix(k, "__"):
			dunder = append(dunder, k)
		case strings.HasPrefix(k, "_"):
			priv = append(priv, k)
		default:
			pub = append(pub, k)
		}
	}
	slices.Sort(pub)
	slices.Sort(dunder)
	slices.Sort(priv)
	return append(append(pub, dunder...), priv...)
}
