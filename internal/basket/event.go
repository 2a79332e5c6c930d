package basket

import "context"

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// Event describes a completed mutation. Items is the basket as persisted.
type Event struct {
	Op               Op
	ProductID        string
	Index            int
	Items            []string
	Granted          int
	FreeOrangesAdded int
}

type Observer interface {
	BasketChanged(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) BasketChanged(ctx context.Context, ev Event) { f(ctx, ev) }
