// apstra-archiver uploads verified per-agent audit chains to an S3-compatible
// bucket, once or on an interval.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/archiver"
	"github.com/bturcanu/apstra-mcp/pkg/config"
	"github.com/bturcanu/apstra-mcp/pkg/evidence"
	"github.com/jackc/pgx/v5/pgxpool"
	flag "github.com/spf13/pflag"
)

func main() {
	envFile := flag.String("env-file", ".env", "load environment variables from this file when it exists")
	agent := flag.String("agent", "", "archive only this agent (overrides ARCHIVER_AGENT_ID)")
	once := flag.Bool("once", false, "run a single pass and exit (overrides ARCHIVER_RUN_ONCE)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := config.LoadDotEnv(*envFile, flag.CommandLine.Changed("env-file")); err != nil {
		log.Error("env file", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	uploader, err := archiver.NewS3Uploader(archiver.S3Config{
		Endpoint:  config.EnvOr("AUDIT_S3_ENDPOINT", "localhost:9000"),
		AccessKey: config.EnvOr("AUDIT_S3_ACCESS_KEY", "minioadmin"),
		SecretKey: config.EnvOr("AUDIT_S3_SECRET_KEY", "minioadmin"),
		Bucket:    config.EnvOr("AUDIT_S3_BUCKET", "apstra-mcp-audit"),
		Secure:    config.EnvOrBool("AUDIT_S3_SECURE", false),
	})
	if err != nil {
		log.Error("s3 init failed", "error", err)
		os.Exit(1)
	}
	if err := uploader.EnsureBucket(ctx); err != nil {
		log.Error("s3 bucket", "error", err)
		os.Exit(1)
	}

	svc := archiver.New(store, uploader, log)

	var agents []string
	if id := firstNonEmpty(*agent, os.Getenv("ARCHIVER_AGENT_ID")); id != "" {
		agents = append(agents, id)
	}
	runOnce := *once || config.EnvOrBool("ARCHIVER_RUN_ONCE", true)
	interval := config.EnvOrSeconds("ARCHIVER_INTERVAL_SEC", 300*time.Second)

	pass := func() {
		failed, err := svc.ArchiveAll(ctx, agents...)
		if err != nil {
			log.Error("archive pass failed", "error", err)
			return
		}
		if failed > 0 {
			log.Warn("archive pass finished with failures", "failed_agents", failed)
		}
	}

	pass()
	if runOnce {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass()
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
