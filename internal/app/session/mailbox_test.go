package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_RunsTasksInOrder(t *testing.T) {
	m := newMailbox()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.run()
	}()

	var got []int
	finished := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, m.post(func() { got = append(got, i) }))
	}
	// A task posting another task must not block.
	m.post(func() {
		m.post(func() { close(finished) })
	})

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	m.close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after close")
	}
	assert.False(t, m.post(func() {}))
}
