package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"MiniBasket/internal/catalog"
	"MiniBasket/internal/web"
)

const DatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.6/bundles/datastar.js"

// Fragment element IDs. Live updates replace elements by these IDs.
const (
	ListID      = "basketList"
	ActionsID   = "cartButtonsRow"
	IndicatorID = "basketIndicator"
	StatusID    = "basketStatus"
)

type Page struct {
	Title       string
	DatastarURL string
	Badge       Badge
	Products    []catalog.Product
	Product     catalog.Product
	Basket      List
}

type Renderer struct {
	t *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(web.Templates(), "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Renderer) List(l List) (string, error) { return r.fragment("basket_list", l) }

func (r *Renderer) Actions(l List) (string, error) { return r.fragment("cart_buttons_row", l) }

func (r *Renderer) Indicator(b Badge) (string, error) { return r.fragment("basket_indicator", b) }

// Status renders the live message line shown after a failed action.
func (r *Renderer) Status(msg string) (string, error) { return r.fragment("basket_status", msg) }

// Page writes a full document. name is one of "index", "product", "basket".
func (r *Renderer) Page(w io.Writer, name string, p Page) error {
	if p.DatastarURL == "" {
		p.DatastarURL = DatastarURL
	}
	if err := r.t.ExecuteTemplate(w, name, p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

func (r *Renderer) fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
