package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// KeyStore maps hashed API keys to agent IDs. Thread-safe.
// Keys are stored as SHA-256 hashes so a memory dump does not leak them.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]string // SHA-256(apiKey) → agentID
}

// NewKeyStore creates a KeyStore from a comma-separated "agent:key" string.
// Example: "planner:sk-abc,oncall-bot:sk-def". Malformed pairs are skipped.
func NewKeyStore(raw string) *KeyStore {
	ks := &KeyStore{keys: make(map[string]string)}
	if raw == "" {
		return ks
	}
	for _, pair := range strings.Split(raw, ",") {
		agent, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		agent, key = strings.TrimSpace(agent), strings.TrimSpace(key)
		if agent == "" || key == "" {
			continue
		}
		ks.keys[hashKey(key)] = agent
	}
	return ks
}

// Len reports how many keys are loaded.
func (ks *KeyStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

// Lookup returns the agent ID for a given API key.
func (ks *KeyStore) Lookup(apiKey string) (agentID string, ok bool) {
	if apiKey == "" {
		return "", false
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	agentID, ok = ks.keys[hashKey(apiKey)]
	return
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
