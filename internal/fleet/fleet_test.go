package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopykernel/gopykernel/internal/kernel"
)

func testSpec(id string, minPort, maxPort int) InitSpec {
	return InitSpec{
		KernelID:        id,
		Transport:       "tcp",
		IP:              "127.0.0.1",
		SignatureScheme: "hmac-sha256",
		Key:             "test-key",
		MinPort:         minPort,
		MaxPort:         maxPort,
	}
}

func TestLaunchLookupScram(t *testing.T) {
	sup := NewSupervisor(0)

	k, err := sup.Launch(testSpec("k1", 39600, 39699))
	require.NoError(t, err)
	assert.NotZero(t, k.ConnFile.ShellPort)

	got, ok := sup.Lookup("k1")
	assert.True(t, ok)
	assert.Same(t, k, got)

	// E6: DELETE /kernel/k1 -> subsequent lookup returns NotFound.
	require.NoError(t, sup.Scram("k1"))
	_, ok = sup.Lookup("k1")
	assert.False(t, ok)
}

func TestLaunchDuplicateKernelID(t *testing.T) {
	sup := NewSupervisor(0)
	_, err := sup.Launch(testSpec("dup", 39700, 39799))
	require.NoError(t, err)
	defer sup.Scram("dup")

	_, err = sup.Launch(testSpec("dup", 39700, 39799))
	assert.ErrorIs(t, err, ErrDuplicateKernelID)
}

func TestScramNotFound(t *testing.T) {
	sup := NewSupervisor(0)
	err := sup.Scram("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIterateListsLiveKernels(t *testing.T) {
	sup := NewSupervisor(0)
	_, err := sup.Launch(testSpec("a1", 39800, 39849))
	require.NoError(t, err)
	_, err = sup.Launch(testSpec("a2", 39850, 39899))
	require.NoError(t, err)
	defer sup.ScramAll()

	ids := sup.Iterate()
	assert.ElementsMatch(t, []string{"a1", "a2"}, ids)
}

func TestScramAllTerminatesEveryKernel(t *testing.T) {
	sup := NewSupervisor(0)
	k1, err := sup.Launch(testSpec("b1", 39900, 39949))
	require.NoError(t, err)
	k2, err := sup.Launch(testSpec("b2", 39950, 39999))
	require.NoError(t, err)

	require.NoError(t, sup.ScramAll())
	assert.Equal(t, kernel.Terminated, k1.State())
	assert.Equal(t, kernel.Terminated, k2.State())
	assert.Empty(t, sup.Iterate())
}

func TestCheckPulseScramsStaleHeartbeat(t *testing.T) {
	sup := NewSupervisor(50 * time.Millisecond)
	k, err := sup.Launch(testSpec("stale", 40000, 40049))
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, sup.CheckPulse())

	assert.Equal(t, kernel.Terminated, k.State())
}

func TestCheckPulseDisabledWhenTimeoutZero(t *testing.T) {
	sup := NewSupervisor(0)
	_, err := sup.Launch(testSpec("healthy", 40050, 40099))
	require.NoError(t, err)
	defer sup.ScramAll()

	require.NoError(t, sup.CheckPulse())
	_, ok := sup.Lookup("healthy")
	assert.True(t, ok)
}
