package execctx

import "fmt"

// EvalError mirrors the {ename, evalue} pair the spec requires an
// execute_reply/error and error IOPub message to carry (§4.3).
type EvalError struct {
	Name  string
	Value string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Value)
}

func newEvalError(name, format string, args ...interface{}) *EvalError {
	return &EvalError{Name: name, Value: fmt.Sprintf(format, args...)}
}

// syntaxError is raised by the lexer/parser; it surfaces to callers as an
// EvalError named "SyntaxError", matching CPython's own naming.
type syntaxError struct {
	msg string
}

func (e *syntaxError) Error() string { return e.msg }

func newSyntaxError(format string, args ...interface{}) error {
	return &syntaxError{msg: fmt.Sprintf(format, args...)}
}

func asEvalError(err error) *EvalError {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EvalError); ok {
		return ee
	}
	if _, ok := err.(*syntaxError); ok {
		return &EvalError{Name: "SyntaxError", Value: err.Error()}
	}
	return &EvalError{Name: "RuntimeError", Value: err.Error()}
}

// control-flow signals, propagated as Go errors through eval and caught by
// the statement-list executor, never surfaced to the user.
type returnSignal struct{ value Value }

func (r *returnSignal) Error() string { return "return outside function" }

type breakSignal struct{}

func (breakSignal) Error() string { return "break outside loop" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue outside loop" }
