// Package archiver ships verified audit chains to object storage.
package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/evidence"
)

// EvidenceStore is the slice of *evidence.Store the archiver reads and
// advances.
type EvidenceStore interface {
	GetArchiveCheckpoint(ctx context.Context, agentID string) (time.Time, string, int64, error)
	GetChainEvents(ctx context.Context, agentID string, afterSeq int64) ([]evidence.ChainEvent, error)
	UpsertArchiveCheckpoint(ctx context.Context, agentID string, archivedAt time.Time, lastHash string, lastSeq int64) error
	ListAgentIDs(ctx context.Context) ([]string, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

type Service struct {
	store    EvidenceStore
	uploader Uploader
	log      *slog.Logger
	now      func() time.Time
}

func New(store EvidenceStore, uploader Uploader, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, uploader: uploader, log: log, now: time.Now}
}

// Bundle is the object written for one archival pass of one agent chain.
type Bundle struct {
	AgentID      string                `json:"agent_id"`
	CreatedAt    time.Time             `json:"created_at"`
	EventCount   int                   `json:"event_count"`
	FirstSeq     int64                 `json:"first_seq"`
	LastSeq      int64                 `json:"last_seq"`
	PrevHash     string                `json:"prev_hash"`
	Checkpoint   string                `json:"checkpoint_hash"`
	Since        time.Time             `json:"since"`
	Until        time.Time             `json:"until"`
	ChainRecords []evidence.ChainEvent `json:"chain_records"`
}

// ArchiveAgent uploads every link recorded since the agent's checkpoint and
// advances the checkpoint. It returns the object key, or "" when there was
// nothing new. A chain that fails verification is not uploaded.
func (s *Service) ArchiveAgent(ctx context.Context, agentID string) (string, error) {
	since, lastHash, lastSeq, err := s.store.GetArchiveCheckpoint(ctx, agentID)
	if err != nil {
		return "", err
	}
	events, err := s.store.GetChainEvents(ctx, agentID, lastSeq)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "", nil
	}
	if err := evidence.VerifyChainFrom(lastHash, events); err != nil {
		return "", fmt.Errorf("verify chain for agent %s: %w", agentID, err)
	}

	first, last := events[0], events[len(events)-1]
	now := s.now().UTC()
	bundle := Bundle{
		AgentID:      agentID,
		CreatedAt:    now,
		EventCount:   len(events),
		FirstSeq:     first.EventSeq,
		LastSeq:      last.EventSeq,
		PrevHash:     lastHash,
		Checkpoint:   last.Hash,
		Since:        since,
		Until:        last.ReceivedAt,
		ChainRecords: events,
	}
	body, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}

	key := fmt.Sprintf("audit/%s/%04d/%02d/%02d/%020d-%s.json",
		agentID, now.Year(), now.Month(), now.Day(), last.EventSeq, last.Hash)
	if err := s.uploader.Upload(ctx, key, body); err != nil {
		return "", err
	}
	if err := s.store.UpsertArchiveCheckpoint(ctx, agentID, last.ReceivedAt, last.Hash, last.EventSeq); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveAll archives the given agents, or every agent with recorded calls
// when none are named. Failures are logged per agent and the pass continues;
// the count of failed agents is returned.
func (s *Service) ArchiveAll(ctx context.Context, agents ...string) (failed int, err error) {
	if len(agents) == 0 {
		agents, err = s.store.ListAgentIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("list agents: %w", err)
		}
	}
	for _, agentID := range agents {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		key, err := s.ArchiveAgent(ctx, agentID)
		if err != nil {
			failed++
			s.log.ErrorContext(ctx, "archive agent failed", "agent_id", agentID, "error", err)
			continue
		}
		if key != "" {
			s.log.InfoContext(ctx, "archived audit bundle", "agent_id", agentID, "key", key)
		}
	}
	return failed, nil
}
