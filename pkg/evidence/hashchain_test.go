package evidence

import (
	"strings"
	"testing"
)

func link(prev, id string, request, outcome []byte) ChainEvent {
	return ChainEvent{
		EventID:      id,
		PrevHash:     prev,
		Hash:         ChainHash(prev, request, outcome),
		CanonRequest: request,
		CanonOutcome: outcome,
	}
}

func TestChainHash_Deterministic(t *testing.T) {
	request := []byte(`{"tool":"get_racks"}`)
	outcome := []byte(`{"status":"success"}`)
	if ChainHash("abc", request, outcome) != ChainHash("abc", request, outcome) {
		t.Error("non-deterministic chain hash")
	}
	if ChainHash("", []byte("a"), nil) == ChainHash("", []byte("b"), nil) {
		t.Error("different requests should produce different hashes")
	}
	if ChainHash("x", []byte("a"), nil) == ChainHash("y", []byte("a"), nil) {
		t.Error("different predecessors should produce different hashes")
	}
}

func TestVerifyChain_Valid(t *testing.T) {
	e1 := link("", "e1", []byte(`{"event":1}`), []byte(`{"status":"success"}`))
	e2 := link(e1.Hash, "e2", []byte(`{"event":2}`), []byte(`{"status":"error"}`))
	if err := VerifyChain([]ChainEvent{e1, e2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyChain_TamperedOutcome(t *testing.T) {
	e1 := link("", "e1", []byte(`{"event":1}`), []byte(`{"status":"error"}`))
	e1.CanonOutcome = []byte(`{"status":"success"}`)
	err := VerifyChain([]ChainEvent{e1})
	if err == nil || !strings.Contains(err.Error(), "e1") {
		t.Fatalf("expected verification to fail on e1, got %v", err)
	}
}

func TestVerifyChain_BrokenBackLink(t *testing.T) {
	e1 := link("", "e1", []byte(`{"event":1}`), nil)
	e2 := link("somewhere-else", "e2", []byte(`{"event":2}`), nil)
	err := VerifyChain([]ChainEvent{e1, e2})
	if err == nil || !strings.Contains(err.Error(), "prev_hash") {
		t.Fatalf("expected back-link failure, got %v", err)
	}
}

func TestVerifyChainFrom_Continuation(t *testing.T) {
	e1 := link("", "e1", []byte(`{"event":1}`), nil)
	e2 := link(e1.Hash, "e2", []byte(`{"event":2}`), nil)
	e3 := link(e2.Hash, "e3", []byte(`{"event":3}`), nil)

	if err := VerifyChainFrom(e1.Hash, []ChainEvent{e2, e3}); err != nil {
		t.Fatalf("continuation should verify: %v", err)
	}
	if err := VerifyChainFrom("", []ChainEvent{e2, e3}); err == nil {
		t.Fatal("continuation must not verify from genesis")
	}
	if err := VerifyChainFrom("anything", nil); err != nil {
		t.Fatalf("empty batch should verify: %v", err)
	}
}
