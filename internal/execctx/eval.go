package execctx

import (
	"fmt"
)

// evaluator tree-walks the AST produced by parseProgram against a pair of
// flat scopes, per SPEC_FULL.md §4.3/§9. Execute builds a fresh evaluator
// per call over the context's persistent globals/locals; locals is merged
// into globals and cleared after each top-level statement (see execctx.go).
type evaluator struct {
	globals     *Env
	locals      *Env
	interrupted func() bool
	stdout      func(string)
	stderr      func(string)
	displayHook func(Value)
	callDepth   int
}

const maxCallDepth = 200

func (ev *evaluator) checkInterrupt() error {
	if ev.interrupted != nil && ev.interrupted() {
		return newEvalError("KeyboardInterrupt", "")
	}
	return nil
}

// execTopLevel runs one top-level statement, routing expression statements
// through the display hook per §4.3 step 3.
func (ev *evaluator) execTopLevel(s stmt) error {
	if es, ok := s.(exprStmt); ok {
		v, err := ev.eval(es.x)
		if err != nil {
			return err
		}
		if v != nil && ev.displayHook != nil {
			ev.displayHook(v)
		}
		return nil
	}
	return ev.exec(s)
}

func (ev *evaluator) execBlock(stmts []stmt) error {
	for _, s := range stmts {
		if err := ev.checkInterrupt(); err != nil {
			return err
		}
		if err := ev.exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) exec(s stmt) error {
	switch n := s.(type) {
	case exprStmt:
		_, err := ev.eval(n.x)
		return err
	case assignStmt:
		v, err := ev.eval(n.value)
		if err != nil {
			return err
		}
		return ev.assign(n.target, v)
	case augAssignStmt:
		cur, err := ev.eval(n.target)
		if err != nil {
			return err
		}
		rhs, err := ev.eval(n.value)
		if err != nil {
			return err
		}
		v, err := applyBinary(n.op, cur, rhs)
		if err != nil {
			return err
		}
		return ev.assign(n.target, v)
	case ifStmt:
		cond, err := ev.eval(n.cond)
		if err != nil {
			return err
		}
		if isTruthy(cond) {
			return ev.execBlock(n.body)
		}
		if n.orelse != nil {
			return ev.execBlock(n.orelse)
		}
		return nil
	case whileStmt:
		for {
			if err := ev.checkInterrupt(); err != nil {
				return err
			}
			cond, err := ev.eval(n.cond)
			if err != nil {
				return err
			}
			if !isTruthy(cond) {
				return nil
			}
			if err := ev.execBlock(n.body); err != nil {
				if _, ok := err.(breakSignal); ok {
					return nil
				}
				if _, ok := err.(continueSignal); ok {
					continue
				}
				return err
			}
		}
	case forStmt:
		iterable, err := ev.eval(n.iter)
		if err != nil {
			return err
		}
		items, err := toIterable(iterable)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := ev.checkInterrupt(); err != nil {
				return err
			}
			ev.locals.set(n.name, item)
			if err := ev.execBlock(n.body); err != nil {
				if _, ok := err.(breakSignal); ok {
					break
				}
				if _, ok := err.(continueSignal); ok {
					continue
				}
				return err
			}
		}
		return nil
	case defStmt:
		fn := &funcValue{name: n.name, params: n.params, body: n.body, closure: ev.globals}
		ev.locals.set(n.name, fn)
		return nil
	case returnStmt:
		var v Value
		if n.value != nil {
			var err error
			v, err = ev.eval(n.value)
			if err != nil {
				return err
			}
		}
		return &returnSignal{value: v}
	case breakStmt:
		return breakSignal{}
	case continueStmt:
		return continueSignal{}
	default:
		return newEvalError("RuntimeError", "unhandled statement %T", n)
	}
}

func (ev *evaluator) assign(target expr, v Value) error {
	switch t := target.(type) {
	case identExpr:
		ev.locals.set(t.name, v)
		return nil
	case subscriptExpr:
		obj, err := ev.eval(t.obj)
		if err != nil {
			return err
		}
		idx, err := ev.eval(t.index)
		if err != nil {
			return err
		}
		switch container := obj.(type) {
		case *dictValue:
			key, ok := idx.(string)
			if !ok {
				return newEvalError("TypeError", "dict keys must be str in this subset")
			}
			container.set(key, v)
			return nil
		case *listValue:
			i, ok := idx.(int64)
			if !ok || i < 0 || int(i) >= len(container.items) {
				return newEvalError("IndexError", "list assignment index out of range")
			}
			container.items[i] = v
			return nil
		}
		return newEvalError("TypeError", "%s object does not support item assignment", typeName(obj))
	default:
		return newEvalError("SyntaxError", "cannot assign to this expression")
	}
}

func (ev *evaluator) eval(e expr) (Value, error) {
	switch n := e.(type) {
	case litExpr:
		return n.value, nil
	case identExpr:
		if v, ok := lookup(ev.locals, ev.globals, n.name); ok {
			return v, nil
		}
		return nil, newEvalError("NameError", "name '%s' is not defined", n.name)
	case attrExpr:
		obj, err := ev.eval(n.obj)
		if err != nil {
			return nil, err
		}
		return getAttr(obj, n.attr)
	case subscriptExpr:
		obj, err := ev.eval(n.obj)
		if err != nil {
			return nil, err
		}
		idx, err := ev.eval(n.index)
		if err != nil {
			return nil, err
		}
		return getItem(obj, idx)
	case unaryExpr:
		x, err := ev.eval(n.x)
		if err != nil {
			return nil, err
		}
		return applyUnary(n.op, x)
	case binaryExpr:
		l, err := ev.eval(n.left)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(n.right)
		if err != nil {
			return nil, err
		}
		return applyBinary(n.op, l, r)
	case boolOpExpr:
		l, err := ev.eval(n.left)
		if err != nil {
			return nil, err
		}
		if n.op == "and" {
			if !isTruthy(l) {
				return l, nil
			}
			return ev.eval(n.right)
		}
		if isTruthy(l) {
			return l, nil
		}
		return ev.eval(n.right)
	case callExpr:
		fn, err := ev.eval(n.fn)
		if err != nil {
			return nil, err
		}
		args := make([]Value, len(n.args))
		for i, a := range n.args {
			v, err := ev.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return ev.call(fn, args)
	case listExpr:
		items := make([]Value, len(n.items))
		for i, it := range n.items {
			v, err := ev.eval(it)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &listValue{items: items}, nil
	default:
		return nil, newEvalError("RuntimeError", "unhandled expression %T", n)
	}
}

func (ev *evaluator) call(fn Value, args []Value) (Value, error) {
	switch f := fn.(type) {
	case *builtinValue:
		return f.fn(args)
	case *funcValue:
		if ev.callDepth >= maxCallDepth {
			return nil, newEvalError("RecursionError", "maximum recursion depth exceeded")
		}
		if len(args) != len(f.params) {
			return nil, newEvalError("TypeError", "%s() takes %d positional arguments but %d were given", f.name, len(f.params), len(args))
		}
		callLocals := newEnv()
		for i, p := range f.params {
			callLocals.set(p, args[i])
		}
		sub := &evaluator{
			globals:     f.closure,
			locals:      callLocals,
			interrupted: ev.interrupted,
			stdout:      ev.stdout,
			stderr:      ev.stderr,
			callDepth:   ev.callDepth + 1,
		}
		err := sub.execBlock(f.body)
		if err == nil {
			return nil, nil
		}
		if rs, ok := err.(*returnSignal); ok {
			return rs.value, nil
		}
		return nil, err
	default:
		return nil, newEvalError("TypeError", "'%s' object is not callable", typeName(fn))
	}
}

func getAttr(obj Value, name string) (Value, error) {
	if d, ok := obj.(*dictValue); ok {
		if v, ok := d.get(name); ok {
			return v, nil
		}
	}
	return nil, newEvalError("AttributeError", "'%s' object has no attribute '%s'", typeName(obj), name)
}

func getItem(obj, idx Value) (Value, error) {
	switch container := obj.(type) {
	case *historySeq:
		return getItemHistory(container, idx)
	case *listValue:
		i, ok := idx.(int64)
		if !ok {
			return nil, newEvalError("TypeError", "list indices must be integers")
		}
		if i < 0 {
			i += int64(len(container.items))
		}
		if i < 0 || int(i) >= len(container.items) {
			return nil, newEvalError("IndexError", "list index out of range")
		}
		return container.items[i], nil
	case *dictValue:
		key, ok := idx.(string)
		if !ok {
			return nil, newEvalError("TypeError", "dict keys must be str in this subset")
		}
		v, ok := container.get(key)
		if !ok {
			return nil, newEvalError("KeyError", "%s", repr(key))
		}
		return v, nil
	case string:
		i, ok := idx.(int64)
		if !ok {
			return nil, newEvalError("TypeError", "string indices must be integers")
		}
		runes := []rune(container)
		if i < 0 {
			i += int64(len(runes))
		}
		if i < 0 || int(i) >= len(runes) {
			return nil, newEvalError("IndexError", "string index out of range")
		}
		return string(runes[i]), nil
	default:
		return nil, newEvalError("TypeError", "'%s' object is not subscriptable", typeName(obj))
	}
}

func toIterable(v Value) ([]Value, error) {
	switch x := v.(type) {
	case *listValue:
		return x.items, nil
	case string:
		runes := []rune(x)
		out := make([]Value, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out, nil
	case *dictValue:
		out := make([]Value, len(x.keys))
		for i, k := range x.keys {
			out[i] = k
		}
		return out, nil
	default:
		return nil, newEvalError("TypeError", "'%s' object is not iterable", typeName(v))
	}
}

func applyUnary(op string, x Value) (Value, error) {
	switch op {
	case "-":
		switch n := x.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, newEvalError("TypeError", "bad operand type for unary -: '%s'", typeName(x))
	case "not":
		return !isTruthy(x), nil
	default:
		return nil, newEvalError("RuntimeError", "unknown unary operator %q", op)
	}
}

func applyBinary(op string, l, r Value) (Value, error) {
	switch op {
	case "+":
		if ls, ok := l.(string); ok {
			rs, ok := r.(string)
			if !ok {
				return nil, newEvalError("TypeError", "can only concatenate str (not \"%s\") to str", typeName(r))
			}
			return ls + rs, nil
		}
		if ll, lok := l.(*listValue); lok {
			rl, rok := r.(*listValue)
			if !rok {
				return nil, newEvalError("TypeError", "can only concatenate list (not \"%s\") to list", typeName(r))
			}
			return &listValue{items: append(append([]Value{}, ll.items...), rl.items...)}, nil
		}
		return numericOp(op, l, r)
	case "-", "*", "/", "%", "**":
		return numericOp(op, l, r)
	case "==":
		return valuesEqual(l, r), nil
	case "!=":
		return !valuesEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compareValues(op, l, r)
	default:
		return nil, newEvalError("RuntimeError", "unknown binary operator %q", op)
	}
}

func asFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func numericOp(op string, l, r Value) (Value, error) {
	li, liok := l.(int64)
	ri, riok := r.(int64)
	if liok && riok && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, newEvalError("ZeroDivisionError", "integer modulo by zero")
			}
			return li % ri, nil
		case "**":
			return intPow(li, ri), nil
		}
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, newEvalError("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(l), typeName(r))
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, newEvalError("ZeroDivisionError", "division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, newEvalError("ZeroDivisionError", "float modulo")
		}
		return mathMod(lf, rf), nil
	case "**":
		return mathPow(lf, rf), nil
	}
	return nil, newEvalError("RuntimeError", "unknown numeric operator %q", op)
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func mathMod(a, b float64) float64 {
	m := a
	for m >= b {
		m -= b
	}
	for m < 0 {
		m += b
	}
	return m
}

func mathPow(base, exp float64) float64 {
	// exponentiation by repeated multiplication is enough for this subset's
	// integer-ish exponents; fractional exponents are out of scope.
	if exp == 0 {
		return 1
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}
	result := 1.0
	for i := 0.0; i < exp; i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func valuesEqual(l, r Value) bool {
	if lf, lok := asFloat(l); lok {
		if rf, rok := asFloat(r); rok {
			return lf == rf
		}
	}
	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		return ok && ls == rs
	}
	if lb, ok := l.(bool); ok {
		rb, ok := r.(bool)
		return ok && lb == rb
	}
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r)
}

func compareValues(op string, l, r Value) (Value, error) {
	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			return nil, newEvalError("TypeError", "'%s' not supported between instances of 'str' and '%s'", op, typeName(r))
		}
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, newEvalError("TypeError", "'%s' not supported between instances of '%s' and '%s'", op, typeName(l), typeName(r))
	}
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, newEvalError("RuntimeError", "unknown comparison operator %q", op)
}
