package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_SortableAndUnique(t *testing.T) {
	ids := make([]string, 200)
	for i := range ids {
		ids[i] = New()
	}

	assert.True(t, sort.StringsAreSorted(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		assert.Len(t, v, 26)
		assert.True(t, Valid(v))
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, len(ids))
}

func TestNewAt_OrdersByTime(t *testing.T) {
	earlier := NewAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}
