package agent

import "sync"

// CancelToken signals cooperative cancellation of a run. It is handed to
// the streaming loop at start and may be triggered from any goroutine.
// Once cancelled it stays cancelled.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

// NewCancelToken creates an untriggered token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel triggers the token. Safe to call multiple times.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Cancelled reports whether the token has been triggered.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is triggered.
func (t *CancelToken) Done() <-chan struct{} {
	return t.ch
}
