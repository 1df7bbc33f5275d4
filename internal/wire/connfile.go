package wire

import "encoding/json"

// ConnectionFile is the provisioner-facing JSON view of a kernel's transport,
// ports, and signing key (§4.8). Field names are stable and match the
// Jupyter connection-file schema exactly.
type ConnectionFile struct {
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	IgnitionKernelID string `json:"ignition_kernel_id"`
	SignatureScheme string `json:"signature_scheme"`
	Key             string `json:"key"`
	ShellPort       int    `json:"shell_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	ControlPort     int    `json:"control_port"`
	HBPort          int    `json:"hb_port"`
}

// connectionFileAlias mirrors ConnectionFile's field set without the custom
// UnmarshalJSON below, used to avoid infinite recursion.
type connectionFileAlias ConnectionFile

// UnmarshalJSON accepts either "ignition_kernel_id" or the bare "kernel_id"
// as the identifying field (an explicit Open Question in the spec this was
// distilled from — decision recorded in DESIGN.md): if both are present and
// differ, ignition_kernel_id wins.
func (c *ConnectionFile) UnmarshalJSON(data []byte) error {
	var alias connectionFileAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = ConnectionFile(alias)

	var aliasField struct {
		KernelID string `json:"kernel_id"`
	}
	// Best-effort: a malformed kernel_id field shouldn't fail the whole
	// connection file if ignition_kernel_id is already present.
	_ = json.Unmarshal(data, &aliasField)
	if c.IgnitionKernelID == "" {
		c.IgnitionKernelID = aliasField.KernelID
	}
	return nil
}
