// apstra-mcp serves the Apstra tool catalog to one MCP client over stdin and
// stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	aos "github.com/bturcanu/apstra-mcp/pkg/apstra"
	"github.com/bturcanu/apstra-mcp/pkg/auth"
	"github.com/bturcanu/apstra-mcp/pkg/config"
	"github.com/bturcanu/apstra-mcp/pkg/connectors"
	"github.com/bturcanu/apstra-mcp/pkg/connectors/apstra"
	"github.com/bturcanu/apstra-mcp/pkg/evidence"
	"github.com/bturcanu/apstra-mcp/pkg/mcp"
	mcpOtel "github.com/bturcanu/apstra-mcp/pkg/otel"
	"github.com/jackc/pgx/v5/pgxpool"
	flag "github.com/spf13/pflag"
)

var version = "dev"

const instructions = `Tools for a Juniper Apstra fabric controller. Start with get_bp to find blueprint ids; ` +
	`most tools take blueprint_id. Failed calls return isError with errorInfo.kind ` +
	`(auth, remote, transport, not_found, invalid_argument, unknown_tool, internal) ` +
	`and, for remote errors, the controller status_code and body.`

func main() {
	envFile := flag.String("env-file", ".env", "load environment variables from this file when it exists")
	agentID := flag.String("agent-id", "", "agent identity recorded for every call (overrides MCP_AGENT_ID)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := config.LoadDotEnv(*envFile, flag.CommandLine.Changed("env-file")); err != nil {
		log.Error("env file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, *agentID, os.Stdin, os.Stdout); err != nil {
		log.Error("apstra-mcp stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, agentID string, in io.Reader, out io.Writer) error {
	// No scrape listener on stdio: metrics default off.
	otelShutdown, err := mcpOtel.Setup(ctx, mcpOtel.ConfigFromEnv("apstra-mcp", version, false))
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	client, err := aos.New(aos.ConfigFromEnv(), log)
	if err != nil {
		return err
	}

	regOpts := []connectors.Option{connectors.WithLogger(log)}
	if config.PostgresConfigured() {
		pool, err := pgxpool.New(ctx, config.PostgresDSN())
		if err != nil {
			return err
		}
		defer pool.Close()
		store := evidence.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		regOpts = append(regOpts, connectors.WithRecorder(evidence.NewRecorder(store, log)))
		log.Info("audit trail enabled")
	}

	registry, err := apstra.NewRegistry(client, regOpts...)
	if err != nil {
		return err
	}

	if agentID == "" {
		agentID = config.EnvOr("MCP_AGENT_ID", "mcp-stdio")
	}
	server := mcp.NewServer(registry,
		mcp.WithServerInfo("apstra-mcp", version),
		mcp.WithInstructions(instructions),
		mcp.WithLogger(log),
	)
	log.Info("apstra-mcp serving on stdio", "controller", client.Session().BaseURL(), "agent_id", agentID, "version", version)

	err = server.Run(auth.WithAgent(ctx, agentID), in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
