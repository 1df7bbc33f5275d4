package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopykernel/gopykernel/internal/execctx"
)

func newTestHandler() *Handler {
	return NewHandler(execctx.NewExecutionContext(), "1.0.0-test")
}

// E3: execute_request{code:"1+2", silent:false, store_history:true} yields
// an execute_input echo, an execute_result of "3", and an ok reply.
func TestHandleExecuteOk(t *testing.T) {
	h := newTestHandler()
	outcome := h.HandleExecute(ExecuteRequest{Code: "1+2", StoreHistory: true})

	require.Nil(t, outcome.Error)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, outcome.Input.ExecutionCount)
	assert.Equal(t, "1+2", outcome.Input.Code)
	assert.Equal(t, "3", outcome.Result.Data["text/plain"])
	assert.Equal(t, 1, outcome.Result.ExecutionCount)
	assert.Equal(t, "ok", outcome.Reply.Status)
	assert.Equal(t, 1, outcome.Reply.ExecutionCount)
}

// E4: execute_request{code:"1/0"} yields a stderr stream mentioning
// ZeroDivisionError, an error broadcast, and an error reply.
func TestHandleExecuteZeroDivision(t *testing.T) {
	h := newTestHandler()
	outcome := h.HandleExecute(ExecuteRequest{Code: "1/0", StoreHistory: true})

	require.NotNil(t, outcome.Error)
	require.NotNil(t, outcome.Stderr)
	assert.Contains(t, outcome.Stderr.Text, "ZeroDivisionError")
	assert.Equal(t, "ZeroDivisionError", outcome.Error.Ename)
	assert.Equal(t, "error", outcome.Reply.Status)
	assert.Equal(t, "ZeroDivisionError", outcome.Reply.Ename)
}

// Testable property 4: silent+empty execute_request is a no-op beyond the
// current-count echo.
func TestHandleExecuteSilentEmptyIsIdempotent(t *testing.T) {
	h := newTestHandler()
	h.HandleExecute(ExecuteRequest{Code: "41+1", StoreHistory: true})

	outcome := h.HandleExecute(ExecuteRequest{Code: "", Silent: true})
	assert.Nil(t, outcome.Result)
	assert.Nil(t, outcome.Error)
	assert.Nil(t, outcome.Stdout)
	assert.Equal(t, 1, outcome.Reply.ExecutionCount)
	// The echo of the current count still fires; only history/other
	// broadcasts are suppressed (§4.4).
	assert.True(t, outcome.EchoInput)

	// execution_count must not have advanced.
	next := h.Exec.NextExecutionCount()
	assert.Equal(t, 2, next)
}

// store_history=false must still report the *current* execution_count on
// the reply, not the Go zero value, even though it neither advances nor
// records the counter.
func TestHandleExecuteStoreHistoryFalseReportsCurrentCount(t *testing.T) {
	h := newTestHandler()
	h.HandleExecute(ExecuteRequest{Code: "1+1", StoreHistory: true})

	outcome := h.HandleExecute(ExecuteRequest{Code: "2+2", StoreHistory: false})
	require.Nil(t, outcome.Error)
	assert.True(t, outcome.EchoInput)
	assert.Equal(t, 1, outcome.Reply.ExecutionCount)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, outcome.Result.ExecutionCount)

	// execution_count must not have advanced past the stored call.
	assert.Equal(t, 2, h.Exec.NextExecutionCount())
}

func TestKernelInfoReply(t *testing.T) {
	h := newTestHandler()
	info := h.KernelInfoReply()
	assert.Equal(t, "5.0", info.ProtocolVersion)
	assert.NotEmpty(t, info.Banner)
	assert.NotEmpty(t, info.LanguageInfo.Name)
}

func TestHandleCompleteLocalsFirst(t *testing.T) {
	h := newTestHandler()
	h.Exec.Execute("ab = 1\nac = 2", true)

	reply := h.HandleComplete(CompleteRequest{Code: "ab = 1; ac = 2; a", CursorPos: len("ab = 1; ac = 2; a")})
	assert.Equal(t, []string{"ab", "ac"}, reply.Matches)
}

func TestCommInfoUnknownTargetClosesComm(t *testing.T) {
	h := newTestHandler()
	reply, closeID := h.HandleCommInfo(CommInfoRequest{TargetName: "nonexistent"}, "comm-42")
	assert.Nil(t, reply)
	assert.Equal(t, "comm-42", closeID)
}

func TestCommInfoKnownTarget(t *testing.T) {
	h := newTestHandler()
	h.HandleCommOpen(CommOpen{CommID: "c1", TargetName: "jupyter.widget"})

	reply, closeID := h.HandleCommInfo(CommInfoRequest{TargetName: "jupyter.widget"}, "c1")
	require.NotNil(t, reply)
	assert.Empty(t, closeID)
	assert.Equal(t, "ok", reply.Status)
	assert.Contains(t, reply.Comms, "c1")
}

func TestCommCloseRemovesComm(t *testing.T) {
	h := newTestHandler()
	h.HandleCommOpen(CommOpen{CommID: "c1", TargetName: "jupyter.widget"})
	h.HandleCommClose(CommClose{CommID: "c1"})

	_, ok := h.Comms.Get("c1")
	assert.False(t, ok)
}
