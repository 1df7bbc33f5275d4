package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopykernel/gopykernel/internal/wire"
)

func testConnFile(id string) wire.ConnectionFile {
	return wire.ConnectionFile{
		Transport:        "tcp",
		IP:               "127.0.0.1",
		IgnitionKernelID: id,
		SignatureScheme:  "hmac-sha256",
		Key:              "test-key",
	}
}

func TestLaunchBindsAllFivePorts(t *testing.T) {
	k, err := Launch("k-launch", testConnFile("k-launch"), 39000, 39199)
	require.NoError(t, err)
	defer k.Scram()

	assert.Equal(t, Idle, k.State())
	assert.NotZero(t, k.ConnFile.ShellPort)
	assert.NotZero(t, k.ConnFile.IOPubPort)
	assert.NotZero(t, k.ConnFile.StdinPort)
	assert.NotZero(t, k.ConnFile.ControlPort)
	assert.NotZero(t, k.ConnFile.HBPort)
	assert.Equal(t, "k-launch", k.ConnFile.IgnitionKernelID)
}

// Testable property 10: scram termination.
func TestScramTerminates(t *testing.T) {
	k, err := Launch("k-scram", testConnFile("k-scram"), 39200, 39399)
	require.NoError(t, err)

	k.Scram()
	assert.Equal(t, Terminated, k.State())

	// Idempotent: a second Scram must not hang or panic.
	k.Scram()
}

func TestRequestRestartReplacesExecutionContext(t *testing.T) {
	k, err := Launch("k-restart", testConnFile("k-restart"), 39400, 39599)
	require.NoError(t, err)
	defer k.Scram()

	k.handler.Exec.Execute("1+1", true)
	require.Equal(t, 2, k.handler.Exec.NextExecutionCount())
	oldSession := k.SessionID()
	require.NotEmpty(t, oldSession)

	k.RequestRestart()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if k.handler.Exec.NextExecutionCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, k.handler.Exec.NextExecutionCount())

	// Restart must mint a new session_id (Scenario E5), not reuse the old one.
	assert.NotEmpty(t, k.SessionID())
	assert.NotEqual(t, oldSession, k.SessionID())
}

func TestStateStringer(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "terminated", Terminated.String())
}
