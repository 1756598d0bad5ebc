package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortPairs(t *testing.T) {
	pairs := []Pair[string, int]{
		{V1: "b", V2: 1},
		{V1: "a", V2: 20},
		{V1: "a", V2: 5},
	}
	SortPairs(pairs)
	assert.Equal(t, []Pair[string, int]{{"a", 5}, {"a", 20}, {"b", 1}}, pairs)
}

func TestMakeSortedPair(t *testing.T) {
	assert.Equal(t, Pair[RouterId, RouterId]{"r1", "r2"}, MakeSortedPair[RouterId]("r2", "r1"))
	assert.Equal(t, Pair[int, int]{1, 1}, MakeSortedPair(1, 1))
}
