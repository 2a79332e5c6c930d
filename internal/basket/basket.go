// Package basket keeps a visitor's ordered list of product IDs together with
// the free-orange promotion: every four apples earn one orange.
//
// Oranges handed out by the promotion are tracked in counters rather than
// recomputed from the basket. The granted counter follows the free oranges
// still considered in the basket; the awarded mark records the highest
// threshold already paid out. Oranges are only ever added when the apple count
// passes that mark, so an orange the visitor removed stays removed until more
// apples are added. Dropping below a threshold never takes oranges away.
// SetGrantedFreeOranges moves only the granted counter, never the mark.
//
// Each mutation runs as one kv.Store Update: concurrent calls on the same
// scope are serialized, and a failed write leaves all three keys as they were.
package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"MiniBasket/internal/catalog"
	"MiniBasket/internal/kv"
)

const (
	KeyBasket  = "basket"
	KeyGranted = "grantedFreeOranges"
	KeyAwarded = "awardedFreeOranges"

	ApplesPerFreeOrange = 4
)

type Store struct {
	kv        kv.Store
	log       *zap.Logger
	observers []Observer
}

// New returns a basket backed by store. Observers are notified after every
// successful mutation, in order.
func New(store kv.Store, log *zap.Logger, observers ...Observer) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: store, log: log, observers: observers}
}

// Get returns the persisted basket. Missing or malformed data yields an empty
// basket; the problem is logged and never returned.
//
// A non-string element comes back as its JSON text, so 7 reads as "7". The
// next mutation persists it in that string form.
func (s *Store) Get(ctx context.Context) []string {
	items, err := s.load(ctx, s.kv)
	if err != nil {
		s.log.Warn("read basket failed", zap.Error(err))
		return []string{}
	}
	return items
}

// GrantedFreeOranges returns how many promotion oranges are considered to be
// in the basket.
func (s *Store) GrantedFreeOranges(ctx context.Context) int {
	n, err := readCount(ctx, s.kv, KeyGranted)
	if err != nil {
		s.log.Warn("read counter failed", zap.String("key", KeyGranted), zap.Error(err))
		return 0
	}
	return n
}

func (s *Store) SetGrantedFreeOranges(ctx context.Context, n int) error {
	return s.kv.Update(ctx, func(ctx context.Context, tx kv.Tx) error {
		return writeCount(ctx, tx, KeyGranted, n)
	})
}

// Add appends productID and then any free oranges newly earned by apples.
func (s *Store) Add(ctx context.Context, productID string) error {
	var ev Event

	err := s.kv.Update(ctx, func(ctx context.Context, tx kv.Tx) error {
		items, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		items = append(items, productID)

		granted, err := readCount(ctx, tx, KeyGranted)
		if err != nil {
			return err
		}
		mark, err := readCount(ctx, tx, KeyAwarded)
		if err != nil {
			return err
		}
		// baskets persisted before the mark existed fall back to the counter
		awarded := max(mark, granted)

		desired := countOf(items, catalog.Apple) / ApplesPerFreeOrange
		added := 0
		if desired > awarded {
			added = desired - awarded
			for range added {
				items = append(items, catalog.Orange)
			}
		}

		if err := put(ctx, tx, items); err != nil {
			return err
		}
		if added > 0 {
			granted += added
			if err := writeCount(ctx, tx, KeyGranted, granted); err != nil {
				return err
			}
			if err := writeCount(ctx, tx, KeyAwarded, desired); err != nil {
				return err
			}
		}

		ev = Event{
			Op:               OpAdd,
			ProductID:        productID,
			Items:            items,
			Granted:          granted,
			FreeOrangesAdded: added,
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, ev)
	return nil
}

// Remove deletes the entry at index. An out-of-range index is a no-op.
// Removing an orange lowers the granted counter. The awarded mark is left
// alone, so the promotion does not hand it back until the apple count reaches
// a new threshold.
func (s *Store) Remove(ctx context.Context, index int) error {
	var (
		ev      Event
		changed bool
	)

	err := s.kv.Update(ctx, func(ctx context.Context, tx kv.Tx) error {
		items, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(items) {
			return nil
		}

		removed := items[index]
		granted, err := readCount(ctx, tx, KeyGranted)
		if err != nil {
			return err
		}

		items = append(items[:index], items[index+1:]...)
		if err := put(ctx, tx, items); err != nil {
			return err
		}
		if removed == catalog.Orange {
			granted = max(0, granted-1)
			if err := writeCount(ctx, tx, KeyGranted, granted); err != nil {
				return err
			}
		}

		ev = Event{
			Op:        OpRemove,
			ProductID: removed,
			Index:     index,
			Items:     items,
			Granted:   granted,
		}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return err
	}

	s.notify(ctx, ev)
	return nil
}

// Clear drops the basket and resets the promotion counters. All writes
// finish before it returns.
func (s *Store) Clear(ctx context.Context) error {
	err := s.kv.Update(ctx, func(ctx context.Context, tx kv.Tx) error {
		if err := tx.Remove(ctx, KeyBasket); err != nil {
			return fmt.Errorf("remove basket: %w", err)
		}
		if err := writeCount(ctx, tx, KeyGranted, 0); err != nil {
			return err
		}
		if err := tx.Remove(ctx, KeyAwarded); err != nil {
			return fmt.Errorf("remove awarded mark: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, Event{Op: OpClear, Items: []string{}})
	return nil
}

// load reads the basket through tx. Only a failing read is an error;
// malformed data is logged and reads as empty.
func (s *Store) load(ctx context.Context, tx kv.Tx) ([]string, error) {
	raw, ok, err := tx.Get(ctx, KeyBasket)
	if err != nil {
		return nil, fmt.Errorf("read basket: %w", err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		s.log.Warn("parse basket failed", zap.Error(err), zap.String("raw", raw))
		return []string{}, nil
	}

	items := make([]string, 0, len(elems))
	for _, e := range elems {
		var id string
		if err := json.Unmarshal(e, &id); err != nil {
			// kept so indices stay stable; it never matches a product
			id = string(e)
		}
		items = append(items, id)
	}
	return items, nil
}

// readCount parses a counter. Absent, unparsable or negative values are 0.
func readCount(ctx context.Context, tx kv.Tx, key string) (int, error) {
	raw, ok, err := tx.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func writeCount(ctx context.Context, tx kv.Tx, key string, n int) error {
	if err := tx.Set(ctx, key, strconv.Itoa(max(0, n))); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func put(ctx context.Context, tx kv.Tx, items []string) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode basket: %w", err)
	}
	if err := tx.Set(ctx, KeyBasket, string(b)); err != nil {
		return fmt.Errorf("write basket: %w", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, ev Event) {
	for _, o := range s.observers {
		o.BasketChanged(ctx, ev)
	}
}

func countOf(items []string, id string) int {
	n := 0
	for _, it := range items {
		if it == id {
			n++
		}
	}
	return n
}
