package shop

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"MiniBasket/internal/catalog"
	"MiniBasket/internal/web"
	"MiniBasket/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	RateLimitPerMin int
}

const (
	readyTimeout = 1 * time.Second
	limitWindow  = 60 * time.Second
)

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if s.Log == nil {
		s.Log = deps.Log
	}

	r := chi.NewRouter()

	setupMiddleware(r, deps)
	setupMetrics(r, s, deps)
	setupRoutes(r, s, deps)

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, s *Server, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if s.Metrics == nil {
		s.Metrics = NewBasketMetrics(deps.Registry)
	}

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func setupRoutes(r *chi.Mux, s *Server, deps HTTPDeps) {
	limiter := kit.NewIPRateLimiter(deps.RateLimitPerMin, limitWindow)

	r.Get("/healthz", healthz)
	r.Get("/readyz", s.readyz)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))
	r.Mount("/api/products", (&catalog.Server{Catalog: s.Catalog}).Routes())

	r.Group(func(sr chi.Router) {
		sr.Use(s.Sessions.Middleware)

		sr.Get("/", s.indexPage)
		sr.Get("/products/{id}", s.productPage)
		sr.Get("/basket", s.basketPage)

		sr.Get("/api/basket", s.getBasket)
		sr.Get("/ui/basket/indicator", s.uiIndicator)

		sr.Group(func(mr chi.Router) {
			mr.Use(limiter.Middleware)

			mr.Post("/api/basket/items", s.addItem)
			mr.Delete("/api/basket/items/{index}", s.removeItem)
			mr.Delete("/api/basket", s.clearBasket)

			mr.Post("/ui/basket/add/{id}", s.uiAdd)
			mr.Post("/ui/basket/remove/{index}", s.uiRemove)
			mr.Post("/ui/basket/clear", s.uiClear)
		})
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Backend.Ping(ctx); err != nil {
		s.Log.Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}
