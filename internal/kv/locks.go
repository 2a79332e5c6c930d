package kv

import "sync"

// scopeLocks hands out one mutex per scope. Entries are dropped once nobody
// holds or waits for them, so idle sessions cost nothing.
type scopeLocks struct {
	mu sync.Mutex
	m  map[string]*scopeLock
}

type scopeLock struct {
	mu   sync.Mutex
	refs int
}

func (l *scopeLocks) lock(scope string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = map[string]*scopeLock{}
	}
	e, ok := l.m[scope]
	if !ok {
		e = &scopeLock{}
		l.m[scope] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, scope)
		}
		l.mu.Unlock()
	}
}

func (l *scopeLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
