package kv

import (
	"context"
	"sync"
)

type entryKey struct {
	scope string
	key   string
}

type MemBackend struct {
	mu    sync.RWMutex
	m     map[entryKey]string
	locks scopeLocks
}

func NewMemBackend() *MemBackend {
	return &MemBackend{m: map[entryKey]string{}}
}

func (b *MemBackend) Ping(context.Context) error { return nil }

func (b *MemBackend) Get(_ context.Context, scope, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[entryKey{scope, key}]
	return v, ok, nil
}

func (b *MemBackend) Set(_ context.Context, scope, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[entryKey{scope, key}] = value
	return nil
}

func (b *MemBackend) Remove(_ context.Context, scope, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, entryKey{scope, key})
	return nil
}

// Update buffers fn's writes and applies them under one lock.
func (b *MemBackend) Update(ctx context.Context, scope string, fn TxFunc) error {
	unlock := b.locks.lock(scope)
	defer unlock()

	tx := &memTx{b: b, scope: scope, writes: map[string]*string{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for key, v := range tx.writes {
		if v == nil {
			delete(b.m, entryKey{scope, key})
			continue
		}
		b.m[entryKey{scope, key}] = *v
	}
	return nil
}

// memTx records writes; a nil value marks a removal.
type memTx struct {
	b      *MemBackend
	scope  string
	writes map[string]*string
}

func (t *memTx) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := t.writes[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	return t.b.Get(ctx, t.scope, key)
}

func (t *memTx) Set(_ context.Context, key, value string) error {
	t.writes[key] = &value
	return nil
}

func (t *memTx) Remove(_ context.Context, key string) error {
	t.writes[key] = nil
	return nil
}
