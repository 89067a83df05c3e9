// apstra-connector serves the Apstra tool catalog over HTTP to agents that
// authenticate with an API key.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aos "github.com/bturcanu/apstra-mcp/pkg/apstra"
	"github.com/bturcanu/apstra-mcp/pkg/auth"
	"github.com/bturcanu/apstra-mcp/pkg/config"
	"github.com/bturcanu/apstra-mcp/pkg/connectors"
	"github.com/bturcanu/apstra-mcp/pkg/connectors/apstra"
	"github.com/bturcanu/apstra-mcp/pkg/connectors/sdk"
	"github.com/bturcanu/apstra-mcp/pkg/evidence"
	mcpOtel "github.com/bturcanu/apstra-mcp/pkg/otel"
	"github.com/bturcanu/apstra-mcp/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

var version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "load environment variables from this file when it exists")
	addr := flag.String("addr", "", "listen address (overrides CONNECTOR_ADDR)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := config.LoadDotEnv(*envFile, flag.CommandLine.Changed("env-file")); err != nil {
		log.Error("env file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelShutdown, err := mcpOtel.Setup(ctx, mcpOtel.ConfigFromEnv("apstra-connector", version, true))
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	// ── Apstra client ────────────────────────────────────────────────────
	client, err := aos.New(aos.ConfigFromEnv(), log)
	if err != nil {
		log.Error("apstra config invalid", "error", err)
		os.Exit(1)
	}

	// ── Audit trail (optional) ───────────────────────────────────────────
	regOpts := []connectors.Option{connectors.WithLogger(log)}
	var invocations invocationReader
	checks := map[string]func(context.Context) error{
		"apstra": func(ctx context.Context) error {
			_, err := client.Session().Credential(ctx)
			return err
		},
	}
	if config.PostgresConfigured() {
		pool, err := pgxpool.New(ctx, config.PostgresDSN())
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store := evidence.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Error("evidence schema", "error", err)
			os.Exit(1)
		}
		regOpts = append(regOpts, connectors.WithRecorder(evidence.NewRecorder(store, log)))
		checks["postgres"] = store.Ping
		invocations = store
	}

	registry, err := apstra.NewRegistry(client, regOpts...)
	if err != nil {
		log.Error("tool registry", "error", err)
		os.Exit(1)
	}

	keys := auth.NewKeyStore(os.Getenv("API_KEYS"))
	if keys.Len() == 0 {
		log.Warn("API_KEYS is empty; every tool request will be rejected")
	}

	handler := newRouter(routerConfig{
		Registry:      registry,
		Keys:          keys,
		Limiter:       newAgentLimiter(config.EnvOrInt("RATE_LIMIT_PER_AGENT", 20)),
		InternalToken: os.Getenv("INTERNAL_AUTH_TOKEN"),
		Timeout:       config.EnvOrSeconds("TOOL_TIMEOUT_SEC", 60*time.Second),
		ReadyChecks:   checks,
		Invocations:   invocations,
		Logger:        log,
	})

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsAddr := config.EnvOr("METRICS_ADDR", "127.0.0.1:9090")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	listen := *addr
	if listen == "" {
		listen = config.EnvOr("CONNECTOR_ADDR", ":8080")
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info("apstra connector starting", "addr", listen, "controller", client.Session().BaseURL(), "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down apstra connector")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Router
// ──────────────────────────────────────────────────────────────────────────────

type catalog interface {
	sdk.Executor
	sdk.Lister
}

// invocationReader is the read side of the audit trail. *evidence.Store
// implements it.
type invocationReader interface {
	GetInvocation(ctx context.Context, eventID string) (*types.ToolInvocation, error)
}

type routerConfig struct {
	Registry      catalog
	Keys          *auth.KeyStore
	Limiter       *agentLimiter
	InternalToken string
	Timeout       time.Duration
	ReadyChecks   map[string]func(context.Context) error
	Invocations   invocationReader // nil when the audit trail is disabled
	Logger        *slog.Logger
}

func newRouter(cfg routerConfig) http.Handler {
	sdkCfg := sdk.Config{InternalToken: cfg.InternalToken, Timeout: cfg.Timeout, Logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(auth.APIKeyAuth(cfg.Keys))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		for name, check := range cfg.ReadyChecks {
			if err := check(ctx); err != nil {
				cfg.Logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, "NOT READY: %s", name)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(cfg.Limiter.Middleware)
		r.Get("/v1/tools", sdk.ToolsHandler(cfg.Registry, sdkCfg))
		r.Post("/exec", sdk.Handler(cfg.Registry, sdkCfg))
		r.Get("/v1/invocations/{event_id}", getInvocation(cfg.Invocations, cfg.Logger))
	})
	return r
}

// getInvocation serves GET /v1/invocations/{event_id}: one audit record,
// visible only to the agent that made the call.
func getInvocation(store invocationReader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			types.ErrNotFound("audit trail is disabled").WriteJSON(w)
			return
		}
		eventID := chi.URLParam(r, "event_id")
		inv, err := store.GetInvocation(r.Context(), eventID)
		if err != nil {
			log.ErrorContext(r.Context(), "get invocation failed", "event_id", eventID, "error", err)
			types.ErrInternal("failed to retrieve invocation").WriteJSON(w)
			return
		}
		if inv == nil || inv.AgentID != auth.AgentFromContext(r.Context()) {
			types.ErrNotFound("invocation not found").WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(inv); err != nil {
			log.ErrorContext(r.Context(), "response encode failed", "error", err)
		}
	}
}
