// Package kv is a synchronous string-keyed store partitioned into scopes.
// A scope plays the role of a browsing origin: one visitor session sees only
// its own keys, and values survive across requests.
package kv

import (
	"context"
	"errors"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Tx reads and writes a single scope. Inside Update, reads see the
// transaction's own writes and nothing is visible elsewhere until commit.
type Tx interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// TxFunc is the body of an Update.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is one scope's view of a Backend. Get, Set and Remove each stand
// alone; Update groups several of them.
type Store interface {
	Tx

	// Update runs fn while holding the scope exclusively against other
	// Updates and commits its writes together. An error from fn discards
	// every write it made.
	Update(ctx context.Context, fn TxFunc) error
}

type Backend interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Remove(ctx context.Context, scope, key string) error
	Update(ctx context.Context, scope string, fn TxFunc) error
	Ping(ctx context.Context) error
}

// Scope binds b to a single scope.
func Scope(b Backend, scope string) Store {
	return scoped{b: b, scope: scope}
}

type scoped struct {
	b     Backend
	scope string
}

func (s scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.b.Get(ctx, s.scope, key)
}

func (s scoped) Set(ctx context.Context, key, value string) error {
	return s.b.Set(ctx, s.scope, key, value)
}

func (s scoped) Remove(ctx context.Context, key string) error {
	return s.b.Remove(ctx, s.scope, key)
}

func (s scoped) Update(ctx context.Context, fn TxFunc) error {
	return s.b.Update(ctx, s.scope, fn)
}
