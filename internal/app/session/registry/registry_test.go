package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct{ id string }

func TestRegistry_PutGet(t *testing.T) {
	r := New[*session]()
	s := &session{id: "a"}

	_, ok := r.Get("g1")
	assert.False(t, ok)

	r.Put("g1", s)
	got, ok := r.Get("g1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())
	assert.Len(t, r.All(), 1)
}

func TestRegistry_CompareAndDelete(t *testing.T) {
	r := New[*session]()
	old := &session{id: "old"}
	replacement := &session{id: "new"}

	r.Put("g1", old)
	r.Put("g1", replacement)

	assert.False(t, r.CompareAndDelete("g1", old), "stale session must not evict its replacement")
	got, ok := r.Get("g1")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	assert.True(t, r.CompareAndDelete("g1", replacement))
	assert.Equal(t, 0, r.Count())
	assert.False(t, r.CompareAndDelete("g1", replacement))
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New[*session]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			guild := string(rune('a' + i%5))
			s := &session{}
			r.Put(guild, s)
			r.Get(guild)
			r.CompareAndDelete(guild, s)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Count(), 5)
}
