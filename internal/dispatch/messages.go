// Package dispatch implements the per-role message dispatch tables of the
// Message Dispatcher (C4): shell/control request handlers, IOPub
// broadcasts, and the comm registry, per SPEC_FULL.md §4.4.
//
// Grounded on the donor's dispatcher/dispatcher.go handleMsg dispatch
// switch and kernel/messages.go's content structs, generalized from Go
// compile-and-run semantics to internal/execctx's execution context.
package dispatch

// MIMEMap is a bag of mimetype -> rendering, matching the donor's
// kernel/messages.go MIMEMap alias.
type MIMEMap = map[string]interface{}

// KernelInfo is the kernel_info_reply content.
type KernelInfo struct {
	ProtocolVersion       string             `json:"protocol_version"`
	Implementation        string             `json:"implementation"`
	ImplementationVersion string             `json:"implementation_version"`
	LanguageInfo          KernelLanguageInfo `json:"language_info"`
	Banner                string             `json:"banner"`
	HelpLinks             []HelpLink         `json:"help_links"`
}

type KernelLanguageInfo struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	MIMEType       string `json:"mimetype"`
	FileExtension  string `json:"file_extension"`
	PygmentsLexer  string `json:"pygments_lexer"`
	CodeMirrorMode string `json:"codemirror_mode"`
}

type HelpLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// DefaultKernelInfo builds the kernel_info_reply content this host always
// returns; the supported language is the §3a subset, named "pykernel-lite"
// so clients never mistake it for full CPython.
func DefaultKernelInfo(implementationVersion string) KernelInfo {
	return KernelInfo{
		ProtocolVersion:       "5.0",
		Implementation:        "ignition-pykernel",
		ImplementationVersion: implementationVersion,
		LanguageInfo: KernelLanguageInfo{
			Name:           "pykernel-lite",
			Version:        "1.0",
			MIMEType:       "text/x-python",
			FileExtension:  ".py",
			PygmentsLexer:  "python",
			CodeMirrorMode: "python",
		},
		Banner: "ignition-pykernel: a single-threaded Python-flavored Jupyter kernel",
		HelpLinks: []HelpLink{
			{Text: "Jupyter messaging protocol", URL: "https://jupyter-client.readthedocs.io/en/stable/messaging.html"},
		},
	}
}

// ExecuteRequest is execute_request's content.
type ExecuteRequest struct {
	Code            string                 `json:"code"`
	Silent          bool                   `json:"silent"`
	StoreHistory    bool                   `json:"store_history"`
	UserExpressions map[string]interface{} `json:"user_expressions"`
	AllowStdin      bool                   `json:"allow_stdin"`
	StopOnError     bool                   `json:"stop_on_error"`
}

// ExecuteReply is the execute_reply content, status-dependent per §4.4.
type ExecuteReply struct {
	Status          string                 `json:"status"`
	ExecutionCount  int                    `json:"execution_count"`
	UserExpressions map[string]interface{} `json:"user_expressions,omitempty"`
	Payload         []interface{}          `json:"payload,omitempty"`
	Ename           string                 `json:"ename,omitempty"`
	Evalue          string                 `json:"evalue,omitempty"`
	Traceback       []string               `json:"traceback,omitempty"`
}

// ExecuteInput is the IOPub execute_input broadcast content.
type ExecuteInput struct {
	Code           string `json:"code"`
	ExecutionCount int    `json:"execution_count"`
}

// ExecuteResult is the IOPub execute_result broadcast content.
type ExecuteResult struct {
	ExecutionCount int     `json:"execution_count"`
	Data           MIMEMap `json:"data"`
	Metadata       MIMEMap `json:"metadata"`
}

// StreamContent is the IOPub stream broadcast content.
type StreamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ErrorContent is the IOPub error broadcast content (and the error fields
// of execute_reply).
type ErrorContent struct {
	Ename     string   `json:"ename"`
	Evalue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// StatusContent is the IOPub status broadcast content.
type StatusContent struct {
	ExecutionState string `json:"execution_state"`
}

// CompleteRequest is complete_request's content.
type CompleteRequest struct {
	Code      string `json:"code"`
	CursorPos int    `json:"cursor_pos"`
}

// CompleteReply is complete_reply's content.
type CompleteReply struct {
	Status      string   `json:"status"`
	Matches     []string `json:"matches"`
	CursorStart int      `json:"cursor_start"`
	CursorEnd   int      `json:"cursor_end"`
	Metadata    MIMEMap  `json:"metadata"`
}

// InspectRequest is inspect_request's content.
type InspectRequest struct {
	Code        string `json:"code"`
	CursorPos   int    `json:"cursor_pos"`
	DetailLevel int    `json:"detail_level"`
}

// InspectReply is inspect_reply's content.
type InspectReply struct {
	Status   string  `json:"status"`
	Found    bool    `json:"found"`
	Data     MIMEMap `json:"data"`
	Metadata MIMEMap `json:"metadata"`
}

// ShutdownRequest is shutdown_request's content (honored on Control).
type ShutdownRequest struct {
	Restart bool `json:"restart"`
}

// ShutdownReply echoes restart and reports ok, per §4.4.
type ShutdownReply struct {
	Restart bool   `json:"restart"`
	Status  string `json:"status"`
}

// InterruptReply is interrupt_reply's content.
type InterruptReply struct {
	Status string `json:"status"`
}

// CommOpen/CommMsg/CommClose mirror the comm_* message contents (§4.4,
// grounded on original_source's execution/comm.py and
// handlers/dispatch/comms.py).
type CommOpen struct {
	CommID     string      `json:"comm_id"`
	TargetName string      `json:"target_name"`
	Data       interface{} `json:"data"`
}

type CommMsg struct {
	CommID string      `json:"comm_id"`
	Data   interface{} `json:"data"`
}

type CommClose struct {
	CommID string      `json:"comm_id"`
	Data   interface{} `json:"data"`
}

type CommInfoRequest struct {
	TargetName string `json:"target_name,omitempty"`
}

type CommInfoReply struct {
	Status string                    `json:"status"`
	Comms  map[string]CommInfoRecord `json:"comms"`
}

type CommInfoRecord struct {
	TargetName string `json:"target_name"`
}
