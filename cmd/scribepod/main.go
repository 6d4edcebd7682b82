package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/backend/llama"
	"github.com/ekisa-team/scribepod/internal/backend/whisper"
	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/env"
	"github.com/ekisa-team/scribepod/internal/logger"
	"github.com/ekisa-team/scribepod/internal/model"
	grpcserver "github.com/ekisa-team/scribepod/internal/server/grpc"
	httpserver "github.com/ekisa-team/scribepod/internal/server/http"
	"github.com/ekisa-team/scribepod/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", 0, "HTTP port to listen on (overrides config)")
		flagGRPCPort   = flag.Int("grpc-port", 0, "gRPC port to listen on (overrides config)")
		flagConfigPath = flag.String("config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", "", "Path to schema file (embedded schema when empty)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(environment.IsProduction()),
			logger.WithLogFile("logs/scribepod.log"),
		),
	)

	if err := run(environment, *flagConfigPath, *flagSchemaPath, *flagHTTPPort, *flagGRPCPort); err != nil {
		slog.Error("Failed to run scribepod", "error", err)
		os.Exit(1)
	}
}

func run(environment env.Environment, configPath, schemaPath string, httpPort, grpcPort int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := model.NewManager()

	// Set once the services exist; reloads before that only refresh the models.
	var persona atomic.Pointer[service.Persona]

	watcher, err := config.NewWatcher(configPath, schemaPath, os.LookupEnv, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		if err := manager.LoadModelsFromConfig(ctx, cfg); err != nil {
			slog.Error("Failed to load models from config", "error", err)
			return
		}

		if p := persona.Load(); p != nil {
			p.Configure(cfg.Persona)
		}
		slog.Info("Config reloaded", "config", configPath)
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	snapshot := *watcher.Snapshot()
	cfg := &snapshot
	if httpPort > 0 {
		cfg.Server.HTTPPort = httpPort
	}
	if grpcPort > 0 {
		cfg.Server.GRPCPort = grpcPort
	}

	slog.Info("Config loaded successfully", "config", configPath, "environment", environment)

	if err := manager.LoadModelsFromConfig(ctx, cfg); err != nil {
		return err
	}

	backends, err := newBackends(cfg.Backends)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			slog.Error("Failed to close backends", "error", err)
		}
	}()

	llm := service.NewLLM(backends, manager)
	stt := service.NewSTT(backends, manager)
	personaSvc := service.NewPersona(llm, cfg.Persona)
	persona.Store(personaSvc)

	grpcSrv := grpcserver.NewServer(net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))

	httpSrv := httpserver.NewServer(httpserver.Options{
		Addr:           net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)),
		Version:        version,
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
	})

	api := httpSrv.API()
	health := httpserver.NewHealthHandler(api, version, environment, manager, backends,
		httpserver.WithReadinessHook(grpcSrv.SetReady),
	)
	httpserver.NewPersonaHandler(api, personaSvc)
	httpserver.NewSTTHandler(api, stt, watcher)
	httpserver.NewLLMHandler(api, llm)

	// Publishes the initial readiness to the gRPC health service.
	health.Check(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Run)
	g.Go(grpcSrv.Run)
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcSrv.Stop(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newBackends builds and registers the llama.cpp and whisper.cpp backends.
func newBackends(cfg config.BackendsConfig) (*backend.Registry, error) {
	registry := backend.NewRegistry()

	gpuLayers := 0
	if cfg.LlamaCPP.UseGPU {
		gpuLayers = 999
	}

	llamaBackend, err := llama.NewBackend(cfg.LlamaCPP.BinPath, llama.Options{
		Timeout:   cfg.LlamaCPP.Timeout,
		Threads:   cfg.LlamaCPP.Threads,
		GPULayers: gpuLayers,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(llamaBackend); err != nil {
		return nil, err
	}

	whisperBackend := whisper.NewBackend(cfg.WhisperCPP.BinPath, backend.NewServerManager(), whisper.Options{
		Port:    cfg.WhisperCPP.Port,
		Timeout: cfg.WhisperCPP.Timeout,
		Threads: cfg.WhisperCPP.Threads,
	})
	if err := registry.Register(whisperBackend); err != nil {
		return nil, err
	}

	return registry, nil
}
