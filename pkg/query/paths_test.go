package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPaths_ShortestFirst(t *testing.T) {
	e, _ := newEngine(t, map[string][]string{
		"a": {"b", "c", "t"},
		"b": {"t"},
		"c": {"d"},
		"d": {"t"},
	})

	res := e.FindPaths([]string{"a"}, []string{"t"}, 3)

	assert.True(t, res.Direct)
	assert.False(t, res.Truncated)
	assert.Equal(t, [][]string{
		{"a", "b", "t"},
		{"a", "c", "d", "t"},
	}, res.Paths)

	res = e.FindPaths([]string{"a"}, []string{"t"}, 2)
	assert.Equal(t, [][]string{{"a", "b", "t"}}, res.Paths)
}

func TestFindPaths_TiesInDiscoveryOrder(t *testing.T) {
	e, _ := newEngine(t, map[string][]string{
		"a": {"y", "x"},
		"y": {"t"},
		"x": {"t"},
	})

	res := e.FindPaths([]string{"a"}, []string{"t"}, Unbounded)

	assert.False(t, res.Direct)
	assert.Equal(t, [][]string{{"a", "y", "t"}, {"a", "x", "t"}}, res.Paths)
}

func TestFindPaths_BorderZeroOnlyDirect(t *testing.T) {
	e, _ := newEngine(t, map[string][]string{
		"a": {"b", "t"},
		"b": {"t"},
	})

	res := e.FindPaths([]string{"a"}, []string{"t"}, 0)
	assert.True(t, res.Direct)
	assert.Empty(t, res.Paths)

	res = e.FindPaths([]string{"a"}, []string{"t"}, 1)
	assert.True(t, res.Direct)
	assert.Empty(t, res.Paths)
}

func TestFindPaths_SameNodeSkipped(t *testing.T) {
	e, _ := newEngine(t, map[string][]string{
		"a": {"b", "a"},
		"b": {"a"},
	})

	res := e.FindPaths([]string{"a"}, []string{"a"}, Unbounded)

	assert.False(t, res.Direct)
	assert.Empty(t, res.Paths)
}

func TestFindPaths_SimplePathsInCycles(t *testing.T) {
	e, _ := newEngine(t, map[string][]string{
		"a": {"b"},
		"b": {"c", "a"},
		"c": {"a", "t"},
	})

	res := e.FindPaths([]string{"a"}, []string{"t"}, Unbounded)

	assert.Equal(t, [][]string{{"a", "b", "c", "t"}}, res.Paths)
}

func TestFindPaths_Limit(t *testing.T) {
	// Ladder with two choices per step: 2^5 paths of length 6
	adjacency := map[string][]string{}
	prev := "s"
	for i := 0; i < 5; i++ {
		next := string(rune('0' + i))
		adjacency[prev] = append(adjacency[prev], "u"+next, "l"+next)
		adjacency["u"+next] = []string{"m" + next}
		adjacency["l"+next] = []string{"m" + next}
		prev = "m" + next
	}
	adjacency[prev] = []string{"t"}
	e, _ := newEngine(t, adjacency, WithPathLimit(10))

	res := e.FindPaths([]string{"s"}, []string{"t"}, Unbounded)

	assert.True(t, res.Truncated)
	assert.Len(t, res.Paths, 10)
}

func TestFindPaths_UnknownNodes(t *testing.T) {
	e, _ := newEngine(t, map[string][]string{"a": {"b"}})

	res := e.FindPaths([]string{"missing"}, []string{"b"}, Unbounded)

	assert.False(t, res.Direct)
	assert.Empty(t, res.Paths)
	assert.False(t, res.Truncated)
}
