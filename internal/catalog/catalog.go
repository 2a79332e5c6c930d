package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Product IDs the promotion depends on.
const (
	Apple  = "apple"
	Banana = "banana"
	Lemon  = "lemon"
	Orange = "orange"
)

var (
	ErrEmptyID         = errors.New("product id is empty")
	ErrDuplicateID     = errors.New("duplicate product id")
	ErrMissingRequired = errors.New("catalog is missing a required product")
)

type Product struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Emoji string `json:"emoji" yaml:"emoji"`
}

// Catalog is an immutable set of products keyed by ID.
type Catalog struct {
	byID   map[string]Product
	sorted []Product
}

// Default returns the built-in fruit catalog.
func Default() *Catalog {
	c, err := New([]Product{
		{ID: Apple, Name: "Apple", Emoji: "🍏"},
		{ID: Banana, Name: "Banana", Emoji: "🍌"},
		{ID: Lemon, Name: "Lemon", Emoji: "🍋"},
		{ID: Orange, Name: "Orange", Emoji: "🍊"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// New validates products and builds a catalog. Apples and oranges must be
// present since the free-orange promotion is defined over them.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Product, len(products))}

	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, ErrEmptyID
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		c.byID[p.ID] = p
		c.sorted = append(c.sorted, p)
	}

	for _, id := range []string{Apple, Orange} {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequired, id)
		}
	}

	sort.Slice(c.sorted, func(i, j int) bool { return c.sorted[i].ID < c.sorted[j].ID })
	return c, nil
}

func (c *Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// List returns the products sorted by ID. The slice is a copy.
func (c *Catalog) List() []Product {
	out := make([]Product, len(c.sorted))
	copy(out, c.sorted)
	return out
}
