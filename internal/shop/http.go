package shop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniBasket/internal/basket"
	"MiniBasket/internal/catalog"
	"MiniBasket/internal/kv"
	"MiniBasket/internal/session"
	"MiniBasket/internal/view"
	"MiniBasket/pkg/kit"
)

type Server struct {
	Backend  kv.Backend
	Catalog  *catalog.Catalog
	Sessions *session.Manager
	Renderer *view.Renderer
	Metrics  *BasketMetrics
	Log      *zap.Logger
}

const maxBodyBytes = 1 << 10

var (
	errNoSession      = errors.New("no session")
	errUnknownProduct = errors.New("unknown product_id")
	errBadIndex       = errors.New("bad index")
)

// basketFor opens the session's basket. Extra observers run after the
// server-wide ones.
func (s *Server) basketFor(ctx context.Context, extra ...basket.Observer) (*basket.Store, error) {
	sid, ok := session.FromContext(ctx)
	if !ok {
		return nil, errNoSession
	}

	log := s.Log.With(zap.String("session", sid))
	observers := []basket.Observer{basketLogger{log: log}}
	if s.Metrics != nil {
		observers = append(observers, s.Metrics)
	}
	observers = append(observers, extra...)

	return basket.New(kv.Scope(s.Backend, sid), log, observers...), nil
}

type basketResp struct {
	Items              []string `json:"items"`
	GrantedFreeOranges int      `json:"granted_free_oranges"`
	Count              int      `json:"count"`
}

func snapshot(ctx context.Context, b *basket.Store) basketResp {
	items := b.Get(ctx)
	return basketResp{
		Items:              items,
		GrantedFreeOranges: b.GrantedFreeOranges(ctx),
		Count:              len(items),
	}
}

func (s *Server) getBasket(w http.ResponseWriter, r *http.Request) {
	b, err := s.basketFor(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, snapshot(r.Context(), b))
}

type addReq struct {
	ProductID string `json:"product_id"`
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAddRequest(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	id, err := s.productID(req.ProductID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.basketFor(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := b.Add(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, snapshot(r.Context(), b))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	idx, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.basketFor(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := b.Remove(r.Context(), idx); err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, snapshot(r.Context(), b))
}

func (s *Server) clearBasket(w http.ResponseWriter, r *http.Request) {
	b, err := s.basketFor(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := b.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, snapshot(r.Context(), b))
}

func decodeAddRequest(w http.ResponseWriter, r *http.Request) (addReq, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req addReq
	if err := dec.Decode(&req); err != nil {
		return addReq{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return addReq{}, errors.New("extra data after json object")
	}
	return req, nil
}

// productID accepts only catalog products; the store itself trusts its input.
func (s *Server) productID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if _, ok := s.Catalog.Lookup(id); !ok {
		return "", errUnknownProduct
	}
	return id, nil
}

func parseIndex(raw string) (int, error) {
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadIndex
	}
	return idx, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errUnknownProduct):
		kit.WriteError(w, r, http.StatusBadRequest, "unknown product_id", nil)
	case errors.Is(err, errBadIndex):
		kit.WriteError(w, r, http.StatusBadRequest, "bad index", nil)
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.Log.Error("basket request failed", zap.Error(err), zap.String("path", r.URL.Path))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

type basketLogger struct {
	log *zap.Logger
}

func (l basketLogger) BasketChanged(_ context.Context, ev basket.Event) {
	l.log.Debug("basket changed",
		zap.String("op", string(ev.Op)),
		zap.String("product_id", ev.ProductID),
		zap.Int("count", len(ev.Items)),
		zap.Int("granted_free_oranges", ev.Granted),
		zap.Int("free_oranges_added", ev.FreeOrangesAdded),
	)
}
