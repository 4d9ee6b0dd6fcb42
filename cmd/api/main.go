package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"crewhub.dev/internal/app"
	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/config"
	"crewhub.dev/internal/httpapi"
	"crewhub.dev/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to CREWHUB_CONFIG)")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	tokens, err := auth.NewTokens(cfg.JWTSecret, "crewhub")
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: a.DB}
	api := httpapi.New(httpapi.Deps{
		Lifecycle:  a.Life,
		Accounts:   a.Accounts,
		Tokens:     tokens,
		Audit:      a.Audit,
		Events:     a.Events,
		Ready:      probe,
		Version:    version,
		TokenTTL:   cfg.TokenTTL,
		RateBurst:  cfg.RateLimitBurst,
		RatePerSec: cfg.RateLimitRPS,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := httpapi.NewHealthServer(probe)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	go health.Run(ctx, 10*time.Second)

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				obs.Error("grpc serve failed", map[string]any{"error": err})
			}
		}()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.Info("crewhub-api started", map[string]any{
		"version":   version,
		"http_addr": cfg.HTTPAddr,
		"grpc_addr": cfg.GRPCAddr,
		"database":  a.DB != nil,
		"publish":   cfg.RepoConfigured(),
	})

	<-ctx.Done()
	obs.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.EffectTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Warn("http shutdown", map[string]any{"error": err})
	}
	grpcSrv.GracefulStop()
	if err := a.Life.Drain(shutdownCtx); err != nil {
		obs.Warn("pending side effects abandoned", map[string]any{"error": err})
	}
	obs.Info("stopped", nil)
}
