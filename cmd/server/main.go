package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/authclient"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/es"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
)

type eventSink interface {
	service.Publisher
	Close() error
}

func main() {
	config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")

	ctx := context.Background()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db_open_failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Error("db_migrate_failed", "error", err)
		os.Exit(1)
	}
	store := &repo.GormRepo{DB: gdb}

	var events eventSink = mykafka.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Error("kafka_init_failed", "error", err)
			os.Exit(1)
		}
		events = prod
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	catalog := &service.CatalogService{Repo: store}
	if cfg.ESURL != "" {
		client, err := es.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Error("es_init_failed", "error", err)
			os.Exit(1)
		}
		if err := es.Ping(ctx, client); err != nil {
			logger.Warn("es_ping_failed", "error", err)
		}
		catalog.Index = &es.ProductIndex{Client: client, Index: cfg.ESIndex}
		go func() {
			n, err := catalog.Reindex(ctx)
			if err != nil {
				logger.Warn("es_reindex_failed", "indexed", n, "error", err)
				return
			}
			logger.Info("es_reindex_done", "indexed", n)
		}()
	}

	checkout := &service.CheckoutService{
		Repo:    store,
		Events:  events,
		Topic:   cfg.KafkaOrderTopic,
		Timeout: cfg.CheckoutTimeout,
	}

	var refresher auth.Refresher
	if cfg.AuthHTTPURL != "" {
		refresher = authclient.NewClient(cfg.AuthHTTPURL)
	}

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CSRFSecure

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		CheckoutHandler: &httpserver.CheckoutHTTP{Svc: checkout},
		CartHandler:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: store}},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalog},
		AddressHandler: &httpserver.AddressHTTP{Svc: &service.AddressService{Repo: store}},
		OrderHandler: &httpserver.OrderHTTP{Svc: &service.OrderService{
			Repo:   store,
			Events: events,
			Topic:  cfg.KafkaOrderTopic,
		}},
		Auth:  auth.NewAutoRefreshMiddleware(cfg.JWTAccessSecret, refresher, cfg.CSRFSecure),
		CSRF:  csrf.Middleware(csrfCfg),
		Ready: store.Ping,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http_listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	go func() {
		<-quit
		logger.Warn("force_exit")
		os.Exit(1)
	}()

	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	checkout.Wait()
	if err := events.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}
