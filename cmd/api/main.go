package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
	"erpcore.org/internal/config"
	"erpcore.org/internal/httpapi"
	"erpcore.org/internal/obs"
	"erpcore.org/internal/rbac"
	"erpcore.org/internal/store/memory"
	"erpcore.org/internal/store/pg"
	"erpcore.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type backend interface {
	rbac.Store
	audit.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)
	obs.SetLevel(cfg.LogLevel)

	ctx := context.Background()

	var (
		store backend
		probe httpapi.ReadyProbe
	)
	if cfg.UsesPostgres() {
		pgStore, err := pg.Open(cfg.PGDSN, cfg.PGMaxOpenConns)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe.Pinger = pgStore
	} else {
		if cfg.IsProduction() {
			log.Fatal("refusing to run production without ERPCORE_PG_DSN")
		}
		obs.Log(obs.LevelWarn, "using in-memory store", nil)
		store = memory.New()
	}

	events := stream.New[audit.Entry](64)
	logger, err := audit.NewLogger(store, rbac.NewScopeResolver(store), audit.WithPublisher(events))
	if err != nil {
		log.Fatalf("audit logger: %v", err)
	}
	opts := []rbac.Option{
		rbac.WithLockoutPolicy(rbac.LockoutPolicy{MaxAttempts: cfg.MaxFailedLogins, Duration: cfg.LockoutDuration}),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		opts = append(opts, rbac.WithPermissionCache(rbac.NewPermissionCache(client, store, cfg.PermissionCacheTTL)))
	}
	svc, err := rbac.NewService(store, logger, auth.NewBcryptHasher(cfg.BcryptCost), opts...)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}
	if err := svc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}
	if cfg.SuperuserUsername != "" {
		_, err := svc.CreateSuperuser(ctx, cfg.SuperuserUsername, cfg.SuperuserEmail, cfg.SuperuserPassword)
		if err != nil && !errors.Is(err, rbac.ErrConflict) {
			log.Fatalf("bootstrap superuser: %v", err)
		}
	}

	tokens, err := auth.NewTokenIssuer(cfg.AuthSecret, cfg.AuthIssuer, cfg.AccessTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	api := httpapi.New(svc, tokens, probe, version,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithAuditStream(events),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	httpapi.NewGRPCServer(probe, version).Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	obs.Log(obs.LevelInfo, "starting erpcore-api", map[string]any{
		"version":   version,
		"http_addr": cfg.HTTPAddr,
		"grpc_addr": cfg.GRPCAddr,
		"postgres":  cfg.UsesPostgres(),
		"cache":     cfg.RedisAddr != "",
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Log(obs.LevelInfo, "shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	obs.Log(obs.LevelInfo, "stopped", nil)
}
