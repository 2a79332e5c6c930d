package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"MiniBasket/internal/catalog"
	"MiniBasket/internal/config"
	"MiniBasket/internal/kv"
	"MiniBasket/internal/session"
	"MiniBasket/internal/shop"
	"MiniBasket/internal/view"
	"MiniBasket/pkg/kit"
)

func main() {
	service := "shop"

	cfg, err := config.Load()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		log.Fatal("load catalog", zap.Error(err), zap.String("file", cfg.CatalogFile))
	}

	backend, closer, err := kv.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open store", zap.Error(err), zap.String("driver", cfg.StoreDriver))
	}
	defer func() { _ = closer.Close() }()

	s := &shop.Server{
		Backend:  backend,
		Catalog:  cat,
		Sessions: session.NewManager(cfg.SessionSecret, cfg.SessionTTL, !cfg.DevMode, log),
		Renderer: view.MustRenderer(),
		Log:      log,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := shop.NewHandler(s, shop.HTTPDeps{
		Log:             log,
		Service:         service,
		Registry:        reg,
		MetricsEnabled:  true,
		MetricsToken:    cfg.MetricsToken,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	log.Info("shop configured",
		zap.String("store", cfg.StoreDriver),
		zap.Int("products", len(cat.List())),
	)

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log, cfg.ShutdownTimeout); err != nil {
		log.Error("http server stopped", zap.Error(err))
	}
}
