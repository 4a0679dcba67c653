package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	achttp "github.com/Strob0t/AgentCorp/internal/adapter/http"
	"github.com/Strob0t/AgentCorp/internal/adapter/mcp"
	acnats "github.com/Strob0t/AgentCorp/internal/adapter/nats"
	"github.com/Strob0t/AgentCorp/internal/adapter/otel"
	"github.com/Strob0t/AgentCorp/internal/adapter/postgres"
	"github.com/Strob0t/AgentCorp/internal/adapter/ristretto"
	"github.com/Strob0t/AgentCorp/internal/adapter/ws"
	"github.com/Strob0t/AgentCorp/internal/config"
	"github.com/Strob0t/AgentCorp/internal/domain/role"
	"github.com/Strob0t/AgentCorp/internal/logger"
	"github.com/Strob0t/AgentCorp/internal/middleware"
	"github.com/Strob0t/AgentCorp/internal/resilience"
	"github.com/Strob0t/AgentCorp/internal/service"
	"github.com/Strob0t/AgentCorp/internal/tool"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Service)
	log.Info("config loaded",
		"port", cfg.Server.Port,
		"company", cfg.Company.Name,
		"provider", cfg.LLM.DefaultProvider,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	deps := service.CompanyDeps{Log: log}

	// PostgreSQL (optional; an empty DSN runs the company in-memory only)
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		deps.Store = postgres.NewStore(pool)
		log.Info("postgres connected, migrations applied")
	} else {
		log.Warn("postgres disabled, running in-memory only")
	}

	// NATS bus mirror (optional)
	if cfg.NATS.URL != "" {
		mirror, err := acnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = mirror.Close() }()
		deps.Mirror = mirror
	}

	// Dashboard feed
	hub := ws.NewHub()
	deps.Events = hub

	// Metrics
	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	deps.Metrics = metrics

	// --- Workplace tools ---

	searchLimiter := resilience.NewLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	toolCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("tool cache: %w", err)
	}
	defer toolCache.Close()

	registry := tool.NewRegistry()
	registry.Register(&tool.ReadFile{Workspace: cfg.Company.Workspace})
	registry.Register(&tool.WriteFile{Workspace: cfg.Company.Workspace})
	registry.Register(&tool.ListFiles{Workspace: cfg.Company.Workspace})
	registry.Register(&tool.WebSearch{
		Limiter: searchLimiter,
		Cache:   toolCache,
		TTL:     cfg.Cache.ToolResultTTL,
	})
	deps.Tools = registry

	// --- Company ---

	deps.Providers = service.NewProviderFactory(cfg.LLM, cfg.Breaker, cfg.Rate)
	deps.Roles = &role.Loader{Dir: cfg.Company.RolesDir}

	company := service.NewCompany(cfg, deps)
	if err := company.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	// --- MCP introspection server (optional) ---

	if cfg.MCP.Addr != "" {
		mcpSrv := mcp.NewServer(
			mcp.ServerConfig{Addr: cfg.MCP.Addr, Name: "agentcorp", Version: "0.1.0", APIKey: cfg.MCP.APIKey},
			mcp.ServerDeps{
				Status:  company,
				Chart:   company,
				Board:   company.Board,
				Tracker: company.Tracker,
				Bus:     company.Bus,
			},
		)
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() { _ = mcpSrv.Stop(context.Background()) }()
		log.Info("mcp server listening", "addr", cfg.MCP.Addr)
	}

	// --- HTTP ---

	handlers := &achttp.Handlers{
		Company: company,
		Hub:     hub,
		Roles:   deps.Roles,
		Log:     log,
	}

	r := chi.NewRouter()
	r.Use(achttp.CORS(cfg.Server.CORSOrigin))
	r.Use(achttp.SecurityHeaders)
	r.Use(achttp.Logger(log))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Auth(cfg.Auth.APIKeyHash))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	achttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	company.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

// configPath returns the YAML config file location.
func configPath() string {
	if p := os.Getenv("AGENTCORP_CONFIG"); p != "" {
		return p
	}
	return "agentcorp.yaml"
}
