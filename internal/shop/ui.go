package shop

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"

	"MiniBasket/internal/basket"
	"MiniBasket/internal/view"
	"MiniBasket/pkg/kit"
)

// uiSignals is sent by the browser with every action. The basket page sets
// BasketView so that its list is patched too.
type uiSignals struct {
	BasketView bool `json:"basketView"`
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "index", view.Page{Title: "Shop", Products: s.Catalog.List()})
}

func (s *Server) productPage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Catalog.Lookup(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.page(w, r, "product", view.Page{Title: p.Name, Product: p})
}

func (s *Server) basketPage(w http.ResponseWriter, r *http.Request) {
	b, err := s.basketFor(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v := view.View{Basket: b, Catalog: s.Catalog}
	s.page(w, r, "basket", view.Page{Title: "Basket", Basket: v.RenderBasket(r.Context())})
}

// page renders a full document with the indicator filled in at load.
func (s *Server) page(w http.ResponseWriter, r *http.Request, name string, p view.Page) {
	b, err := s.basketFor(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p.Badge = view.View{Basket: b, Catalog: s.Catalog}.RenderIndicator(r.Context())

	var buf bytes.Buffer
	if err := s.Renderer.Page(&buf, name, p); err != nil {
		s.Log.Error("render page failed", zap.Error(err), zap.String("page", name))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	kit.WriteHTML(w, http.StatusOK, buf.Bytes())
}

// patcher re-renders the basket fragments into the browser after every
// mutation. It reads the basket back through the view, like a page load.
type patcher struct {
	sse      *datastar.ServerSentEventGenerator
	renderer *view.Renderer
	view     view.View
	log      *zap.Logger
	withList bool
}

func (p *patcher) BasketChanged(ctx context.Context, _ basket.Event) {
	p.patch(ctx)
}

func (p *patcher) patch(ctx context.Context) {
	if p.withList {
		l := p.view.RenderBasket(ctx)
		p.send(p.renderer.List(l))
		p.send(p.renderer.Actions(l))
	}
	p.send(p.renderer.Indicator(p.view.RenderIndicator(ctx)))
}

func (p *patcher) status(msg string) {
	p.send(p.renderer.Status(msg))
}

func (p *patcher) send(html string, err error) {
	if err == nil {
		err = p.sse.PatchElements(html)
	}
	if err != nil {
		p.log.Warn("patch elements failed", zap.Error(err))
	}
}

// openUI starts the event stream and opens the basket with the patcher
// observing it.
func (s *Server) openUI(w http.ResponseWriter, r *http.Request) (*patcher, *basket.Store, bool) {
	var sig uiSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		s.Log.Debug("no ui signals", zap.Error(err))
	}

	p := &patcher{
		renderer: s.Renderer,
		log:      s.Log,
		withList: sig.BasketView,
	}

	b, err := s.basketFor(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	p.view = view.View{Basket: b, Catalog: s.Catalog}
	p.sse = datastar.NewSSE(w, r)

	return p, b, true
}

func (s *Server) uiAdd(w http.ResponseWriter, r *http.Request) {
	id, idErr := s.productID(chi.URLParam(r, "id"))

	p, b, ok := s.openUI(w, r)
	if !ok {
		return
	}
	if idErr != nil {
		p.status("Unknown product.")
		return
	}
	if err := b.Add(r.Context(), id); err != nil {
		s.uiFailed(p, err)
	}
}

func (s *Server) uiRemove(w http.ResponseWriter, r *http.Request) {
	idx, idxErr := parseIndex(chi.URLParam(r, "index"))

	p, b, ok := s.openUI(w, r)
	if !ok {
		return
	}
	if idxErr != nil {
		p.status("Bad item.")
		return
	}
	if err := b.Remove(r.Context(), idx); err != nil {
		s.uiFailed(p, err)
	}
}

func (s *Server) uiClear(w http.ResponseWriter, r *http.Request) {
	p, b, ok := s.openUI(w, r)
	if !ok {
		return
	}
	if err := b.Clear(r.Context()); err != nil {
		s.uiFailed(p, err)
	}
}

func (s *Server) uiIndicator(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.openUI(w, r)
	if !ok {
		return
	}
	p.patch(r.Context())
}

func (s *Server) uiFailed(p *patcher, err error) {
	s.Log.Error("basket ui action failed", zap.Error(err))
	p.status("Something went wrong, please try again.")
}
