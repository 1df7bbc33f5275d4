package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Testable property 9: completion correctness, locals-first ordering.
func TestCompletionLocalsFirst(t *testing.T) {
	ec := NewExecutionContext()
	code := "ab = 1; ac = 2; a"
	res := ec.Execute("ab = 1\nac = 2", true)
	require.Nil(t, res.Err)

	cursorPos := len(code)
	cr := ec.Complete(code, cursorPos)
	assert.Equal(t, []string{"ab", "ac"}, cr.Matches)
	assert.Equal(t, cursorPos-1, cr.CursorStart)
	assert.Equal(t, cursorPos, cr.CursorEnd)
}

func TestCompletionDictSubscript(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute(`conf = {"alpha": 1, "beta": 2}`, true)
	require.Nil(t, res.Err)

	code := `conf[`
	cr := ec.Complete(code, len(code))
	assert.ElementsMatch(t, []string{"alpha", "beta"}, cr.Matches)
}

func TestCompletionOrdersPublicDunderPrivate(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute(`d = {"__z__": 1, "_priv": 2, "zeta": 3, "alpha": 4}`, true)
	require.Nil(t, res.Err)

	v, ok := ec.globals.get("d")
	require.True(t, ok)
	d, ok := v.(*dictValue)
	require.True(t, ok)

	keys := sortedDictKeys(d)
	assert.Equal(t, []string{"alpha", "zeta", "__z__", "_priv"}, keys)
}

func TestInspectFindsAssignedName(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("greeting = 'hi'", true)
	require.Nil(t, res.Err)

	code := "greeting"
	found, text := ec.Inspect(code, 4)
	assert.True(t, found)
	assert.Contains(t, text, "greeting")
}
