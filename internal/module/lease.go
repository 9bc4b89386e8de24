package module

import "sync"

// lease reference-counts a handle so that it is closed only once it has been
// retired and no Forward holds it.
type lease[I, O any] struct {
	handle  Handle[I, O]
	mu      sync.Mutex
	refs    int
	retired bool
}

func newLease[I, O any](h Handle[I, O]) *lease[I, O] {
	return &lease[I, O]{handle: h}
}

func (l *lease[I, O]) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.retired {
		return false
	}
	l.refs++
	return true
}

func (l *lease[I, O]) release() {
	l.mu.Lock()
	l.refs--
	closeNow := l.retired && l.refs == 0
	l.mu.Unlock()

	if closeNow {
		_ = l.handle.Close()
	}
}

// retire marks the lease unusable and closes the handle if it is idle.
func (l *lease[I, O]) retire() error {
	l.mu.Lock()
	if l.retired {
		l.mu.Unlock()
		return nil
	}
	l.retired = true
	idle := l.refs == 0
	l.mu.Unlock()

	if idle {
		return l.handle.Close()
	}
	return nil
}
