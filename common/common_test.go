package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetInsertAndHas(t *testing.T) {
	s := MakeSet[string]()
	assert.False(t, s.Has("a"))
	s.Insert("a")
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"))
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"c": 3, "a": 1, "b": 2}
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
}
