// Package execctx implements the interpretive execution context (C3):
// a single-threaded, Python-flavored evaluator over a flat locals/globals
// map pair, with the display-hook, history, completion, and inspection
// behavior SPEC_FULL.md §4.3/§4.4 requires.
//
// Grounded directly on original_source's execution/run.py Executor (the
// run_interactive/_sync_local_changes_onto_global/install/uninstall
// sequence) and execution/results.py, re-expressed over a hand-rolled
// tree-walking evaluator instead of a live CPython AST per §3a/§9.
package execctx

import (
	"strings"
	"sync/atomic"
)

// ExecutionContext is one kernel's evaluator plus its persistent history,
// execution counter, and interrupt flag. A kernel owns exactly one; restart
// (§4.5/§4.6) replaces it wholesale.
type ExecutionContext struct {
	globals        *Env
	locals         *Env
	hist           *history
	executionCount int
	interrupted    atomic.Bool
}

// NewExecutionContext builds a fresh context with builtins and history
// shims installed into globals.
func NewExecutionContext() *ExecutionContext {
	ec := &ExecutionContext{
		globals: newEnv(),
		locals:  newEnv(),
		hist:    &history{},
	}
	installBuiltins(ec.globals, func(string) {}) // replaced per-call in Execute
	installHistory(ec.globals, ec.hist)
	return ec
}

// Interrupt requests that the in-flight Execute stop after its current
// statement, per the interrupt_request control handler. Execute clears the
// flag when it starts, so an interrupt between calls does not carry over.
func (ec *ExecutionContext) Interrupt() {
	ec.interrupted.Store(true)
}

func (ec *ExecutionContext) clearInterrupt() {
	ec.interrupted.Store(false)
}

// Execute runs one cell's worth of code to completion (or first error),
// implementing §4.3 steps 1-6.
func (ec *ExecutionContext) Execute(code string, storeHistory bool) *ExecutionResult {
	ec.clearInterrupt()

	var stdout, stderr strings.Builder
	var displayObj Value
	var hasDisplay bool

	// Redirect stdout/stderr/display-hook into call-scoped buffers (step 1);
	// installBuiltins re-registers "print" against this call's writer so
	// concurrent Execute calls never interleave output (in practice Execute
	// is only ever invoked from the kernel's single event-loop thread).
	installBuiltins(ec.globals, func(s string) { stdout.WriteString(s) })

	ev := &evaluator{
		globals:     ec.globals,
		locals:      ec.locals,
		interrupted: ec.interrupted.Load,
		stdout:      func(s string) { stdout.WriteString(s) },
		stderr:      func(s string) { stderr.WriteString(s) },
		displayHook: func(v Value) { displayObj = v; hasDisplay = true },
	}

	result := &ExecutionResult{Code: code}

	stmts, err := parseProgram(code)
	if err != nil {
		result.Err = asEvalError(err)
		ec.finish(result, storeHistory)
		return result
	}

	for _, s := range stmts {
		if ec.interrupted.Load() {
			result.Err = newEvalError("KeyboardInterrupt", "")
			break
		}
		if execErr := ev.execTopLevel(s); execErr != nil {
			if _, ok := execErr.(breakSignal); ok {
				result.Err = newEvalError("SyntaxError", "'break' outside loop")
			} else if _, ok := execErr.(continueSignal); ok {
				result.Err = newEvalError("SyntaxError", "'continue' not properly in loop")
			} else if rs, ok := execErr.(*returnSignal); ok {
				_ = rs // "return" outside a function: CPython raises SyntaxError at
				result.Err = newEvalError("SyntaxError", "'return' outside function")
			} else {
				result.Err = asEvalError(execErr)
			}
			break
		}
		// Module-level locals -> globals promotion (§4.3 step 3).
		ec.locals.mergeInto(ec.globals)
	}

	if hasDisplay {
		result.DisplayObject = displayObj
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	ec.finish(result, storeHistory)
	return result
}

func (ec *ExecutionContext) finish(result *ExecutionResult, storeHistory bool) {
	if storeHistory {
		ec.executionCount++
		ec.hist.results = append(ec.hist.results, result)
	}
	// execute_reply always reports the current counter, whether or not this
	// call advanced or stored it (§4.4).
	result.ExecutionCount = ec.executionCount
}

// NextExecutionCount reports the count execute_request's IOPub
// execute_input echo should carry, before Execute runs.
func (ec *ExecutionContext) NextExecutionCount() int {
	return ec.executionCount + 1
}
