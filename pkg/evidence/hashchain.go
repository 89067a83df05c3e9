package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChainHash computes the next link of an agent's chain.
//
//	hash = SHA-256( prevHash || canonicalRequest || canonicalOutcome )
func ChainHash(prevHash string, canonRequest []byte, canonOutcome []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonRequest)
	if canonOutcome != nil {
		h.Write(canonOutcome)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ChainEvent is one stored link, as read back for verification and
// archival.
type ChainEvent struct {
	EventSeq     int64     `json:"event_seq"`
	EventID      string    `json:"event_id"`
	AgentID      string    `json:"agent_id"`
	Tool         string    `json:"tool"`
	Hash         string    `json:"hash"`
	PrevHash     string    `json:"prev_hash"`
	CanonRequest []byte    `json:"canon_request"`
	CanonOutcome []byte    `json:"canon_outcome"`
	ReceivedAt   time.Time `json:"received_at"`
}

// VerifyChain checks a chain that starts at the genesis link.
func VerifyChain(events []ChainEvent) error {
	return VerifyChainFrom("", events)
}

// VerifyChainFrom checks events that continue a chain whose last verified
// hash is prev. Both the recomputed hash and the stored back-link must match.
func VerifyChainFrom(prev string, events []ChainEvent) error {
	for i, ev := range events {
		if ev.PrevHash != prev {
			return fmt.Errorf("chain broken at index %d (event %s): prev_hash %q does not link to %q",
				i, ev.EventID, ev.PrevHash, prev)
		}
		expected := ChainHash(prev, ev.CanonRequest, ev.CanonOutcome)
		if ev.Hash != expected {
			return fmt.Errorf("chain broken at index %d (event %s): expected %s, got %s",
				i, ev.EventID, expected, ev.Hash)
		}
		prev = ev.Hash
	}
	return nil
}
