package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteArithmetic(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("1+2", true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(3), res.DisplayObject)
	assert.Equal(t, 1, res.ExecutionCount)
}

func TestExecuteDivisionByZero(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("1/0", true)
	require.NotNil(t, res.Err)
	assert.Equal(t, "ZeroDivisionError", res.Err.Name)
}

// Testable property 3: execution_count equals the count of store_history
// requests that did not abort before history was stored.
func TestExecutionCountMonotonicity(t *testing.T) {
	ec := NewExecutionContext()
	r1 := ec.Execute("1+1", true)
	assert.Equal(t, 1, r1.ExecutionCount)
	r2 := ec.Execute("1/0", true)
	assert.Equal(t, 2, r2.ExecutionCount)
	r3 := ec.Execute("2+2", false)
	assert.Equal(t, 2, r3.ExecutionCount) // not stored, but still reports the current count
	r4 := ec.Execute("3+3", true)
	assert.Equal(t, 3, r4.ExecutionCount)
}

// Testable property 8: local -> global promotion.
func TestLocalToGlobalPromotion(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("x = 1\ndef f(): return x", true)
	require.Nil(t, res.Err)

	res = ec.Execute("f()", true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(1), res.DisplayObject)
}

func TestSemicolonSeparatedStatements(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("ab = 1; ac = 2; ab + ac", true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(3), res.DisplayObject)
}

func TestPrintWritesStdout(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute(`print("hi")`, true)
	require.Nil(t, res.Err)
	assert.Equal(t, "hi\n", res.Stdout)
}

func TestHistoryInOutNegativeIndex(t *testing.T) {
	ec := NewExecutionContext()
	r1 := ec.Execute("10+10", true)
	require.Nil(t, r1.Err)
	r2 := ec.Execute("Out[-1]", true)
	require.Nil(t, r2.Err)
	assert.Equal(t, int64(20), r2.DisplayObject)

	r3 := ec.Execute("In[-2]", true)
	require.Nil(t, r3.Err)
	assert.Equal(t, "10+10", r3.DisplayObject)
}

func TestForLoopAccumulates(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("total = 0\nfor i in range(5):\n    total = total + i\ntotal", true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(10), res.DisplayObject)
}

func TestWhileLoopWithBreak(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("n = 0\nwhile True:\n    n = n + 1\n    if n == 3:\n        break\nn", true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(3), res.DisplayObject)
}

func TestDictLiteralAndSubscript(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute(`d = {"a": 1}
d["a"]`, true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(1), res.DisplayObject)
}

func TestNameErrorOnUndefined(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute("undefined_name", true)
	require.NotNil(t, res.Err)
	assert.Equal(t, "NameError", res.Err.Name)
}

func TestSilentEmptyDoesNotAdvanceHistory(t *testing.T) {
	ec := NewExecutionContext()
	ec.Execute("1+1", true)
	before := ec.NextExecutionCount()
	ec.Execute("", false)
	assert.Equal(t, before, ec.NextExecutionCount())
}
