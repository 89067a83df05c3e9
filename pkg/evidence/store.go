package evidence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tool_invocations (
	event_seq     BIGSERIAL PRIMARY KEY,
	event_id      TEXT        NOT NULL UNIQUE,
	agent_id      TEXT        NOT NULL,
	tool          TEXT        NOT NULL,
	params_json   JSONB,
	status        TEXT        NOT NULL,
	error_kind    TEXT        NOT NULL DEFAULT '',
	status_code   INTEGER     NOT NULL DEFAULT 0,
	error_msg     TEXT        NOT NULL DEFAULT '',
	output_hash   TEXT        NOT NULL DEFAULT '',
	duration_ms   BIGINT      NOT NULL DEFAULT 0,
	received_at   TIMESTAMPTZ NOT NULL,
	canon_request BYTEA       NOT NULL,
	canon_outcome BYTEA       NOT NULL,
	hash          TEXT        NOT NULL,
	prev_hash     TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS tool_invocations_agent_seq ON tool_invocations (agent_id, event_seq);

CREATE TABLE IF NOT EXISTS archive_checkpoints (
	agent_id    TEXT PRIMARY KEY,
	archived_at TIMESTAMPTZ NOT NULL,
	last_hash   TEXT        NOT NULL,
	last_seq    BIGINT      NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store persists tool invocations in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new evidence store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("evidence.EnsureSchema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Write path
// ──────────────────────────────────────────────────────────────────────────────

// RecordInvocation appends inv to its agent's chain and fills in Hash and
// PrevHash. A per-agent advisory lock serialises appends so concurrent
// writers cannot fork the chain.
func (s *Store) RecordInvocation(ctx context.Context, inv *types.ToolInvocation) error {
	canonRequest, canonOutcome, err := canonicalParts(inv)
	if err != nil {
		return fmt.Errorf("evidence.RecordInvocation: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("evidence.RecordInvocation begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", agentLockID(inv.AgentID)); err != nil {
		return fmt.Errorf("evidence.RecordInvocation advisory lock: %w", err)
	}

	prevHash, err := lastHashTx(ctx, tx, inv.AgentID)
	if err != nil {
		return fmt.Errorf("evidence.RecordInvocation last hash: %w", err)
	}
	inv.PrevHash = prevHash
	inv.Hash = ChainHash(prevHash, canonRequest, canonOutcome)

	var params any
	if len(inv.Params) > 0 {
		params = inv.Params
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tool_invocations (
			event_id, agent_id, tool, params_json,
			status, error_kind, status_code, error_msg, output_hash, duration_ms,
			received_at, canon_request, canon_outcome, hash, prev_hash
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15
		)`,
		inv.EventID, inv.AgentID, inv.Tool, params,
		inv.Outcome.Status, inv.Outcome.ErrorKind, inv.Outcome.StatusCode, inv.Outcome.Error,
		inv.Outcome.OutputHash, inv.Outcome.DurationMS,
		inv.ReceivedAt, canonRequest, canonOutcome, inv.Hash, inv.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("evidence.RecordInvocation insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("evidence.RecordInvocation commit: %w", err)
	}
	return nil
}

// UpsertArchiveCheckpoint records the last archived link of an agent chain.
func (s *Store) UpsertArchiveCheckpoint(ctx context.Context, agentID string, archivedAt time.Time, lastHash string, lastSeq int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archive_checkpoints (agent_id, archived_at, last_hash, last_seq, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (agent_id) DO UPDATE
		SET archived_at = EXCLUDED.archived_at,
		    last_hash   = EXCLUDED.last_hash,
		    last_seq    = EXCLUDED.last_seq,
		    updated_at  = now()`,
		agentID, archivedAt, lastHash, lastSeq)
	if err != nil {
		return fmt.Errorf("evidence.UpsertArchiveCheckpoint: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Read path
// ──────────────────────────────────────────────────────────────────────────────

// GetInvocation returns one invocation by event id, or nil when absent.
func (s *Store) GetInvocation(ctx context.Context, eventID string) (*types.ToolInvocation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT event_id, agent_id, tool, params_json,
		       status, error_kind, status_code, error_msg, output_hash, duration_ms,
		       received_at, hash, prev_hash
		FROM tool_invocations WHERE event_id = $1`, eventID)

	var inv types.ToolInvocation
	var params []byte
	err := row.Scan(
		&inv.EventID, &inv.AgentID, &inv.Tool, &params,
		&inv.Outcome.Status, &inv.Outcome.ErrorKind, &inv.Outcome.StatusCode,
		&inv.Outcome.Error, &inv.Outcome.OutputHash, &inv.Outcome.DurationMS,
		&inv.ReceivedAt, &inv.Hash, &inv.PrevHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("evidence.GetInvocation: %w", err)
	}
	inv.Params = params
	return &inv, nil
}

// GetChainEvents returns an agent's links after sequence afterSeq, oldest
// first.
func (s *Store) GetChainEvents(ctx context.Context, agentID string, afterSeq int64) ([]ChainEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_seq, event_id, agent_id, tool, hash, prev_hash,
		       canon_request, canon_outcome, received_at
		FROM tool_invocations
		WHERE agent_id = $1 AND event_seq > $2
		ORDER BY event_seq ASC`, agentID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("evidence.GetChainEvents: %w", err)
	}
	defer rows.Close()

	var events []ChainEvent
	for rows.Next() {
		var ev ChainEvent
		if err := rows.Scan(&ev.EventSeq, &ev.EventID, &ev.AgentID, &ev.Tool, &ev.Hash, &ev.PrevHash,
			&ev.CanonRequest, &ev.CanonOutcome, &ev.ReceivedAt); err != nil {
			return nil, fmt.Errorf("evidence.GetChainEvents scan: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence.GetChainEvents iteration: %w", err)
	}
	return events, nil
}

// GetArchiveCheckpoint returns the last archived link of an agent chain. An
// agent never archived yields zero values.
func (s *Store) GetArchiveCheckpoint(ctx context.Context, agentID string) (time.Time, string, int64, error) {
	var (
		at   time.Time
		hash string
		seq  int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT archived_at, last_hash, last_seq
		FROM archive_checkpoints WHERE agent_id = $1`, agentID).Scan(&at, &hash, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, "", 0, nil
	}
	if err != nil {
		return time.Time{}, "", 0, fmt.Errorf("evidence.GetArchiveCheckpoint: %w", err)
	}
	return at, hash, seq, nil
}

// ListAgentIDs returns every agent with at least one recorded invocation.
func (s *Store) ListAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT agent_id FROM tool_invocations ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("evidence.ListAgentIDs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("evidence.ListAgentIDs scan: %w", err)
	}
	return ids, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// canonicalParts returns the two hashed halves of a link: the request (who
// called what with which params, when) and the outcome.
func canonicalParts(inv *types.ToolInvocation) (request, outcome []byte, err error) {
	params, err := CanonicalRaw(inv.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("canonical params: %w", err)
	}
	request, err = CanonicalJSON(map[string]any{
		"event_id":    inv.EventID,
		"agent_id":    inv.AgentID,
		"tool":        inv.Tool,
		"params":      jsonRaw(params),
		"received_at": inv.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("canonical request: %w", err)
	}
	outcome, err = CanonicalJSON(inv.Outcome)
	if err != nil {
		return nil, nil, fmt.Errorf("canonical outcome: %w", err)
	}
	return request, outcome, nil
}

// jsonRaw embeds pre-encoded JSON in a value passed to CanonicalJSON.
type jsonRaw []byte

func (r jsonRaw) MarshalJSON() ([]byte, error) { return r, nil }

func lastHashTx(ctx context.Context, tx pgx.Tx, agentID string) (string, error) {
	var h string
	err := tx.QueryRow(ctx, `
		SELECT hash FROM tool_invocations
		WHERE agent_id = $1
		ORDER BY event_seq DESC LIMIT 1`, agentID).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return h, err
}

// agentLockID derives a deterministic advisory-lock key from an agent id.
func agentLockID(agentID string) int64 {
	h := fnv.New64a()
	h.Write([]byte("apstra-mcp/chain/" + agentID))
	return int64(binary.BigEndian.Uint64(h.Sum(nil)))
}
