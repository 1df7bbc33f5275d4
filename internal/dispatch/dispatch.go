package dispatch

import (
	"github.com/gopykernel/gopykernel/internal/execctx"
)

// Handler holds one kernel's execution context and comm registry and turns
// parsed request content into reply/broadcast content, per §4.4. It does
// not touch sockets or wire framing; the kernel event loop (C5) owns that
// and the busy/idle IOPub bracketing around every call here.
type Handler struct {
	Exec                  *execctx.ExecutionContext
	Comms                 *CommRegistry
	ImplementationVersion string
}

func NewHandler(ec *execctx.ExecutionContext, version string) *Handler {
	return &Handler{Exec: ec, Comms: NewCommRegistry(), ImplementationVersion: version}
}

func (h *Handler) KernelInfoReply() KernelInfo {
	return DefaultKernelInfo(h.ImplementationVersion)
}

// ExecuteOutcome bundles everything an execute_request produces: the
// IOPub broadcasts to emit in order, and the shell reply.
type ExecuteOutcome struct {
	Input     ExecuteInput
	EchoInput bool
	Stdout    *StreamContent
	Stderr    *StreamContent
	Error     *ErrorContent
	Result    *ExecuteResult
	Reply     ExecuteReply
}

// HandleExecute runs req.Code against the execution context and renders
// every downstream broadcast/reply §4.4's execute_request row describes.
func (h *Handler) HandleExecute(req ExecuteRequest) ExecuteOutcome {
	nextCount := h.Exec.NextExecutionCount()

	// Special case: silent + empty code reports only the current count with
	// no history or broadcasts beyond the echo (§4.4).
	if req.Silent && req.Code == "" {
		return ExecuteOutcome{
			Input:     ExecuteInput{Code: req.Code, ExecutionCount: nextCount - 1},
			EchoInput: true,
			Reply: ExecuteReply{
				Status:          "ok",
				ExecutionCount:  nextCount - 1,
				UserExpressions: map[string]interface{}{},
				Payload:         []interface{}{},
			},
		}
	}

	result := h.Exec.Execute(req.Code, req.StoreHistory)
	outcome := ExecuteOutcome{
		Input:     ExecuteInput{Code: req.Code, ExecutionCount: nextCount},
		EchoInput: !req.Silent,
	}

	if result.Stdout != "" {
		outcome.Stdout = &StreamContent{Name: "stdout", Text: result.Stdout}
	}

	if result.Err != nil {
		formatted := formatTraceback(result.Err)
		outcome.Stderr = &StreamContent{Name: "stderr", Text: formatted}
		outcome.Error = &ErrorContent{
			Ename:     result.Err.Name,
			Evalue:    result.Err.Value,
			Traceback: []string{formatted},
		}
		status := "error"
		if result.Err.Name == "KeyboardInterrupt" {
			status = "abort"
		}
		outcome.Reply = ExecuteReply{
			Status:         status,
			ExecutionCount: result.ExecutionCount,
			Ename:          result.Err.Name,
			Evalue:         result.Err.Value,
			Traceback:      outcome.Error.Traceback,
		}
		return outcome
	}

	if result.DisplayObject != nil {
		outcome.Result = &ExecuteResult{
			ExecutionCount: result.ExecutionCount,
			Data:           MIMEMap{"text/plain": execctx.Repr(result.DisplayObject)},
			Metadata:       MIMEMap{},
		}
	}

	outcome.Reply = ExecuteReply{
		Status:          "ok",
		ExecutionCount:  result.ExecutionCount,
		UserExpressions: map[string]interface{}{},
		Payload:         []interface{}{},
	}
	return outcome
}

func formatTraceback(err *execctx.EvalError) string {
	return err.Name + ": " + err.Value
}

func (h *Handler) HandleComplete(req CompleteRequest) CompleteReply {
	res := h.Exec.Complete(req.Code, req.CursorPos)
	return CompleteReply{
		Status:      "ok",
		Matches:     res.Matches,
		CursorStart: res.CursorStart,
		CursorEnd:   res.CursorEnd,
		Metadata:    MIMEMap{},
	}
}

func (h *Handler) HandleInspect(req InspectRequest) InspectReply {
	found, text := h.Exec.Inspect(req.Code, req.CursorPos)
	data := MIMEMap{}
	if found {
		data["text/plain"] = text
	}
	return InspectReply{Status: "ok", Found: found, Data: data, Metadata: MIMEMap{}}
}

func (h *Handler) HandleCommOpen(req CommOpen) {
	h.Comms.Open(req.CommID, req.TargetName, req.Data)
}

func (h *Handler) HandleCommMsg(req CommMsg) {
	h.Comms.Update(req.CommID, req.Data)
}

func (h *Handler) HandleCommClose(req CommClose) {
	h.Comms.Close(req.CommID)
}

// HandleCommInfo returns either a comm_info_reply content, or (when a
// target_name was given that no open comm uses) the comm_id to echo back
// in a comm_close, per §4.4's "unknown target_name" rule.
func (h *Handler) HandleCommInfo(req CommInfoRequest, requestCommID string) (reply *CommInfoReply, closeCommID string) {
	if req.TargetName != "" && !h.Comms.KnownTargets(req.TargetName) {
		return nil, requestCommID
	}
	return &CommInfoReply{Status: "ok", Comms: h.Comms.Filtered(req.TargetName)}, ""
}
