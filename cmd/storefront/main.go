package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/admin"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/storefront"
	"storefront/pkg/kit"
)

const service = "storefront"

type backend struct {
	source  catalog.Source
	writer  catalog.Writer
	storage cart.Storage
	close   func()
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("backend init failed", zap.Error(err))
	}
	defer be.close()

	ceiling, err := decimal.NewFromString(cfg.PriceCeiling)
	if err != nil {
		log.Fatal("bad price_ceiling", zap.String("value", cfg.PriceCeiling), zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	engine := catalog.NewEngine(be.source, log,
		catalog.WithMetrics(catalog.NewMetrics(reg)),
		catalog.WithPriceCeiling(ceiling),
	)

	sessions := storefront.NewRegistry(storefront.RegistryDeps{
		Engine:      engine,
		Storage:     be.storage,
		PageSize:    cfg.PageSize,
		Log:         log,
		CartMetrics: cart.NewMetrics(reg),
		MaxSessions: cfg.SessionMax,
		IdleTTL:     cfg.SessionIdleTTL,
	})

	handlers := storefront.Handlers{
		Catalog: &catalog.Server{Engine: engine, PageSize: cfg.PageSize, Log: log},
		Shop:    &storefront.Server{Sessions: sessions, Engine: engine, Log: log},
	}
	if cfg.AdminEmail != "" {
		handlers.Admin = &admin.Server{
			Log:      log,
			Creds:    admin.NewCredentials(cfg.AdminEmail, cfg.AdminPasswordHash),
			JWT:      admin.NewTokenMaker(cfg.JWTSecret),
			Products: be.writer,
		}
	} else {
		log.Warn("admin console disabled: admin_email not set")
	}

	h := storefront.NewHandler(handlers, storefront.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	if err := kit.RunHTTPServer(ctx, cfg.HTTPAddr, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// openBackend picks Postgres when database_url is set and the in-memory
// source otherwise.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (backend, error) {
	if cfg.DatabaseURL == "" {
		var products []catalog.Product
		if cfg.SeedDemo {
			products = catalog.DemoProducts(time.Now())
		}
		src := catalog.NewMemSource(products...)

		var storage cart.Storage = cart.NewMemStorage()
		if cfg.CartDir != "" {
			fs, err := cart.NewFileStorage(cfg.CartDir)
			if err != nil {
				return backend{}, err
			}
			storage = fs
		}
		log.Info("using in-memory catalog", zap.Int("products", len(products)))
		return backend{source: src, writer: src, storage: storage, close: func() {}}, nil
	}

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		return backend{}, err
	}

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(pctx, cfg.DatabaseURL)
	if err != nil {
		return backend{}, err
	}

	src := catalog.NewPostgresSource(pool)
	return backend{
		source:  src,
		writer:  src,
		storage: cart.NewPostgresStorage(pool),
		close:   pool.Close,
	}, nil
}
