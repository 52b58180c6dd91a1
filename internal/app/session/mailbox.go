package session

import "sync"

// mailbox is an unbounded FIFO of tasks drained by a single goroutine.
// post never blocks, so transport callbacks fired from inside a running
// task cannot deadlock the loop.
type mailbox struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// post enqueues fn. It returns false once the mailbox is closed.
func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting tasks. Tasks still queued are dropped.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.tasks = nil
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// run processes tasks one at a time until the mailbox is closed.
func (m *mailbox) run() {
	for {
		m.mu.Lock()
		for len(m.tasks) == 0 && !m.closed {
			m.mu.Unlock()
			<-m.signal
			m.mu.Lock()
		}
		if m.closed {
			m.mu.Unlock()
			return
		}
		fn := m.tasks[0]
		m.tasks[0] = nil
		m.tasks = m.tasks[1:]
		m.mu.Unlock()

		fn()
	}
}
