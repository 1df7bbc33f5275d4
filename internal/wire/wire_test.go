package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	codec := NewCodec([]byte("s3cr3t"), "hmac-sha256")
	header, err := NewHeader("execute_request", "sess-1", "alice")
	require.NoError(t, err)

	msg := &Message{
		Identities: [][]byte{[]byte("route-1")},
		Header:     header,
		Metadata:   map[string]interface{}{"z": 1, "a": 2},
		Content:    map[string]interface{}{"code": "1+2"},
		Buffers:    [][]byte{[]byte{0x01, 0x02}},
	}

	frames, err := codec.Serialize(msg, msg.Identities)
	require.NoError(t, err)

	parsed, err := codec.Parse(frames)
	require.NoError(t, err)
	assert.Equal(t, msg.Header.MsgID, parsed.Header.MsgID)
	assert.Equal(t, msg.Header.MsgType, parsed.Header.MsgType)
	assert.Len(t, parsed.Buffers, 1)

	var content map[string]interface{}
	require.NoError(t, json.Unmarshal(parsed.Content.(json.RawMessage), &content))
	assert.Equal(t, "1+2", content["code"])
}

func TestBadSignatureDetected(t *testing.T) {
	codec := NewCodec([]byte("s3cr3t"), "hmac-sha256")
	header, err := NewHeader("kernel_info_request", "sess-1", "alice")
	require.NoError(t, err)
	msg := &Message{Header: header, Content: map[string]interface{}{}}

	frames, err := codec.Serialize(msg, nil)
	require.NoError(t, err)

	// Flip a byte in the signature frame.
	sigIdx := 1
	corrupted := append([][]byte{}, frames...)
	sig := append([]byte{}, corrupted[sigIdx]...)
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	corrupted[sigIdx] = sig

	_, err = codec.Parse(corrupted)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestMissingDelimiterIsBadFrame(t *testing.T) {
	codec := NewCodec(nil, "hmac-sha256")
	_, err := codec.Parse([][]byte{[]byte("not-a-delimiter")})
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestConnectionFileAliasing(t *testing.T) {
	raw := []byte(`{"transport":"tcp","ip":"127.0.0.1","kernel_id":"k1","signature_scheme":"hmac-sha256","key":"k","shell_port":1,"iopub_port":2,"stdin_port":3,"control_port":4,"hb_port":5}`)
	var cf ConnectionFile
	require.NoError(t, json.Unmarshal(raw, &cf))
	assert.Equal(t, "k1", cf.IgnitionKernelID)

	out, err := json.Marshal(cf)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"ignition_kernel_id":"k1"`)
	assert.NotContains(t, string(out), `"kernel_id"`)
}
