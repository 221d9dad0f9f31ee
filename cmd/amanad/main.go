package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amanavault/config"
	"amanavault/core"
	"amanavault/gateway"
	"amanavault/observability/logging"
	"amanavault/observability/otel"
	"amanavault/rpc"
	"amanavault/storage"
)

const (
	envKey         = "AMANA_ENV"
	rpcSecretEnv   = "AMANA_RPC_SECRET"
	otlpHeadersEnv = "AMANA_OTLP_HEADERS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envKey))
	logger := logging.Setup(logging.Options{Service: "amanad", Env: env})

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.Setup(logging.Options{
		Service: "amanad",
		Env:     env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		logger.Error("failed to construct node", slog.Any("error", err))
		os.Exit(1)
	}

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		doc, err := core.LoadGenesis(genesisPath)
		if err != nil {
			logger.Error("failed to load genesis", slog.Any("error", err))
			os.Exit(1)
		}
		if _, err := node.ApplyGenesis(doc); err != nil && !errors.Is(err, core.ErrGenesisApplied) {
			logger.Error("failed to apply genesis", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "amanad",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    true,
			Headers:     otel.ParseHeaders(os.Getenv(otlpHeadersEnv)),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	jwtSecret := strings.TrimSpace(os.Getenv(rpcSecretEnv))
	if jwtSecret == "" {
		jwtSecret = cfg.RPCJWTSecret
	}

	rpcServer := rpc.NewServer(node, rpc.Options{
		JWTSecret: jwtSecret,
		RateLimit: cfg.RPCRateLimit,
		RateBurst: cfg.RPCRateBurst,
		Logger:    logger,
	})
	gwServer := gateway.NewServer(node, gateway.Options{
		RateLimit: cfg.RPCRateLimit,
		RateBurst: cfg.RPCRateBurst,
		Logger:    logger,
	})

	servers := []*http.Server{
		{Addr: cfg.RPCAddress, Handler: rpcServer.Handler(), ReadHeaderTimeout: 5 * time.Second},
	}
	names := []string{"rpc"}
	if strings.TrimSpace(cfg.GatewayAddress) != "" {
		servers = append(servers, &http.Server{Addr: cfg.GatewayAddress, Handler: gwServer.Handler(), ReadHeaderTimeout: 5 * time.Second})
		names = append(names, "gateway")
	}
	if strings.TrimSpace(cfg.MetricsAddress) != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
		names = append(names, "metrics")
	}

	errCh := make(chan error, len(servers))
	for i, server := range servers {
		name := names[i]
		logger.Info("starting server", "name", name, "addr", server.Addr)
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}(server)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", "name", names[i], slog.Any("error", err))
		}
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case "leveldb":
		return storage.NewLevelDB(cfg.DataDir)
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "amana.db"))
	case "memory":
		return storage.NewMemDB(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
