package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/orders"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/seed"
	"github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/kafka"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

func main() {
	cfg, err := config.LoadFile(".env")
	if err != nil {
		log.Printf("warning: could not load .env: %v", err)
		cfg = config.Load()
	}
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustPositive(cfg.CartIdleTimeout, "CART_IDLE_TIMEOUT")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	baseCtx := logging.IntoContext(context.Background(), logger)

	ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
	db, err := pkgdb.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var publisher *events.Publisher
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		publisher = events.NewPublisher(producer, events.BreakerSettings{})
	} else {
		logger.Info("kafka disabled, domain events are dropped")
	}

	users := &identity.Service{
		Repo:      &identity.GormRepo{DB: db},
		JWTSecret: cfg.JWTAccessSecret,
		TokenTTL:  cfg.AccessTokenTTL,
	}
	products := &catalog.Service{Repo: &catalog.GormRepo{DB: db}}
	catalogHTTP := &httpserver.CatalogHTTP{Svc: products}
	if publisher != nil {
		products.Events = publisher
	}
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		index := &search.Index{ES: es, Name: cfg.ESIndex}
		products.Search = index
		catalogHTTP.Search = index
	} else {
		logger.Info("elasticsearch disabled, search falls back to the database")
	}

	if cfg.SeedDemoData {
		if err := seed.Run(baseCtx, users, products); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	var (
		store cart.Store
		rdb   *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb = redis.NewClient(opts)
		store = cart.NewRedisStore(rdb, cfg.CartIdleTimeout)
	} else {
		logger.Warn("REDIS_URL not set, carts are kept in process memory")
		store = cart.NewMemoryStore(cfg.CartIdleTimeout)
	}
	carts := &cart.Service{Store: store, Products: products}

	orderRepo := &orders.GormRepo{DB: db}
	engine := &checkout.Engine{
		Actors:   users,
		Products: products,
		Orders:   orderRepo,
		Metrics:  metrics.NewCheckoutMetrics(reg),
	}
	if publisher != nil {
		engine.Events = publisher
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(metrics.NewServerMetrics(reg, "server").Middleware())

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure
	csrfCfg.SkipPaths = []string{"/auth/login"}
	e.Use(csrf.Middleware(csrfCfg))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:     &httpserver.AuthHTTP{Svc: users, Carts: carts, SecureCookie: cfg.CookieSecure},
		CatalogHandler:  catalogHTTP,
		CartHandler:     &httpserver.CartHTTP{Svc: carts, SecureCookie: cfg.CookieSecure},
		CheckoutHandler: &httpserver.CheckoutHTTP{Engine: engine, Carts: carts, SecureCookie: cfg.CookieSecure},
		OrderHandler:    &httpserver.OrderHTTP{Svc: &orders.Service{Repo: orderRepo}, Actors: users},
		UserHandler:     &httpserver.UserHTTP{Svc: users},
		JWT:             middleware.NewJWTMiddleware(cfg.JWTAccessSecret, cfg.CookieSecure),
		Gatherer:        reg,
		Ready: func(ctx context.Context) error {
			if err := pkgdb.Ping(ctx, db); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("storefront listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("shutdown complete")
}
