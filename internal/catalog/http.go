package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"MiniBasket/pkg/kit"
)

type Server struct {
	Catalog *Catalog
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.list)
	r.Get("/{id}", s.get)
	return r
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.List())
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok := s.Catalog.Lookup(id)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}
