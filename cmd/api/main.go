package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notes-api/internal/auth"
	"notes-api/internal/config"
	"notes-api/internal/graph"
	"notes-api/internal/metrics"
	"notes-api/internal/models"
	"notes-api/pkg/logger"
	"notes-api/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager := auth.NewManager(cfg.Auth)
	if !authManager.CanSign() {
		log.Warn("JWT_SECRET is not set; every credential will be rejected and signUp/signIn cannot issue tokens")
	}

	log.Info("connecting to postgres", "target", cfg.DBTarget())
	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := models.NewPostgresStore(db)
	if err := store.Migrate(rootCtx); err != nil {
		log.Error("postgres migrate failed", "err", err)
		os.Exit(1)
	}

	var inflight *utils.InflightCap
	if cfg.Redis.Addr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Redis.Addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		// The TTL outlives the server write timeout.
		inflight, err = utils.NewInflightCap(rdb, "notes-api:inflight:", cfg.Redis.ConcurrencyLimit, time.Minute)
		if err != nil {
			log.Error("concurrency cap init failed", "err", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	resolver := graph.NewResolver(authManager)
	schema, err := graph.NewSchema(resolver, graph.DefaultRules)
	if err != nil {
		log.Error("graphql schema init failed", "err", err)
		os.Exit(1)
	}
	gate, err := graph.NewGate(schema, graph.DefaultRules)
	if err != nil {
		log.Error("graphql gate init failed", "err", err)
		os.Exit(1)
	}

	r := gin.New()
	registerRoutes(r, routeDeps{
		log:      log,
		graphql:  graph.NewHandler(schema, gate, graph.NewBuilder(authManager, store)),
		health:   func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
		inflight: inflight,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "err", err)
			}
		}()
	}

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics shutdown failed", "err", err)
		}
	}
}
