// Package view turns a basket into view models for the line-item list and
// the count badge. It only reads; rendering never changes the basket.
package view

import (
	"context"

	"MiniBasket/internal/catalog"
)

const (
	Placeholder = "No products in basket."
	freeSuffix  = " (free)"
)

type LineItem struct {
	Index       int
	ProductID   string
	Emoji       string
	Label       string
	RemoveLabel string
}

type List struct {
	Items       []LineItem
	Empty       bool
	ShowActions bool
}

func (List) Placeholder() string { return Placeholder }

type Badge struct {
	Count   int
	Visible bool
}

// BuildList renders known products in basket order. Unknown IDs are skipped
// but keep their slot, so each line's Index still addresses the persisted
// entry. A basket holding only unknown entries is not empty.
func BuildList(items []string, c *catalog.Catalog) List {
	if len(items) == 0 {
		return List{Empty: true}
	}

	l := List{ShowActions: true, Items: make([]LineItem, 0, len(items))}
	for i, id := range items {
		p, ok := c.Lookup(id)
		if !ok {
			continue
		}

		label := p.Name
		if id == catalog.Orange {
			label += freeSuffix
		}
		l.Items = append(l.Items, LineItem{
			Index:       i,
			ProductID:   id,
			Emoji:       p.Emoji,
			Label:       label,
			RemoveLabel: "Remove " + p.Name,
		})
	}
	return l
}

func BuildBadge(items []string) Badge {
	return Badge{Count: len(items), Visible: len(items) > 0}
}

// Reader is the read side of the basket store.
type Reader interface {
	Get(ctx context.Context) []string
}

type View struct {
	Basket  Reader
	Catalog *catalog.Catalog
}

func (v View) RenderBasket(ctx context.Context) List {
	return BuildList(v.Basket.Get(ctx), v.Catalog)
}

func (v View) RenderIndicator(ctx context.Context) Badge {
	return BuildBadge(v.Basket.Get(ctx))
}
