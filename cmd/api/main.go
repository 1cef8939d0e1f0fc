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

	"dialplane/internal/agents"
	"dialplane/internal/audit"
	"dialplane/internal/auth"
	"dialplane/internal/calls"
	"dialplane/internal/config"
	"dialplane/internal/numbers"
	"dialplane/internal/routing"
	"dialplane/internal/sipinfra"
	"dialplane/internal/webhook"
	"dialplane/pkg/logger"
	"dialplane/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Storage
	callStore := calls.NewPostgresStore(db)
	bindingStore := numbers.NewPostgresBindingRepo(db)
	agentStore := agents.NewPostgresStore(db)
	auditSvc := audit.NewService(audit.NewMemoryRepo())

	dedup, err := calls.NewRedisDedupSet(rdb, cfg.SIP.DedupTTL)
	if err != nil {
		log.Error("dedup init failed", "err", err)
		os.Exit(1)
	}

	// Platform boundary
	mgmtAPI := sipinfra.NewHTTPManagementAPI(cfg.Platform.ManagementURL, cfg.Platform.APIKey, cfg.Platform.APISecret)
	reconciler, err := sipinfra.NewReconciler(mgmtAPI, sipinfra.NewRedisLocker(rdb, 30*time.Second), sipinfra.Config{
		TrunkName:        cfg.SIP.TrunkName,
		DispatchRuleName: cfg.SIP.DispatchRuleName,
		RoomPrefix:       cfg.SIP.RoomPrefix,
	})
	if err != nil {
		log.Error("reconciler init failed", "err", err)
		os.Exit(1)
	}
	dispatcher := agents.NewHTTPDispatcher(cfg.Platform.DispatchURL, cfg.Platform.APIKey, cfg.Platform.APISecret)

	// Call processing
	resolver := routing.NewBindingResolver(bindingStore, agentStore)
	machine := calls.NewStateMachine(callStore, dedup, resolver, dispatcher, calls.Options{
		TreatAllJoinsAsSIP: cfg.SIP.TreatAllJoinsAsSIP,
		SIPIdentityPrefix:  cfg.SIP.IdentityPrefix,
	})
	machine.Audit = auditSvc

	verifier, err := webhook.NewVerifier(cfg.Platform.APIKey, cfg.Platform.APISecret)
	if err != nil {
		log.Error("webhook verifier init failed", "err", err)
		os.Exit(1)
	}

	numberSvc, err := numbers.NewService(bindingStore, reconciler, agentStore)
	if err != nil {
		log.Error("numbers init failed", "err", err)
		os.Exit(1)
	}
	numberSvc.WithAudit(auditSvc)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		AuthMW:  auth.RequireAccessToken(authManager),
		Webhook: webhook.Handler{Verifier: verifier, Machine: machine},
		Numbers: numbers.Handlers{Service: numberSvc},
		Calls:   calls.Handlers{Store: callStore},
		DB:      db,
		Redis:   rdb,
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

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
