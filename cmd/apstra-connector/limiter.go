package main

import (
	"container/list"
	"net/http"
	"sync"

	"github.com/bturcanu/apstra-mcp/pkg/auth"
	"github.com/bturcanu/apstra-mcp/pkg/types"
	"golang.org/x/time/rate"
)

const maxRateLimiters = 10_000

// agentLimiter keeps one token bucket per agent, evicting the least recently
// used agent once maxRateLimiters is reached.
type agentLimiter struct {
	mu       sync.Mutex
	perAgent int
	capacity int
	limiters map[string]*list.Element
	order    *list.List // front = most recently used
}

type limiterEntry struct {
	agent string
	lim   *rate.Limiter
}

func newAgentLimiter(perAgent int) *agentLimiter {
	if perAgent <= 0 {
		perAgent = 20
	}
	return &agentLimiter{
		perAgent: perAgent,
		capacity: maxRateLimiters,
		limiters: make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (l *agentLimiter) allow(agent string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.limiters[agent]; ok {
		l.order.MoveToFront(el)
		return el.Value.(*limiterEntry).lim.Allow()
	}

	if l.order.Len() >= l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.limiters, oldest.Value.(*limiterEntry).agent)
	}

	entry := &limiterEntry{agent: agent, lim: rate.NewLimiter(rate.Limit(l.perAgent), l.perAgent*2)}
	l.limiters[agent] = l.order.PushFront(entry)
	return entry.lim.Allow()
}

func (l *agentLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// Middleware rejects requests from agents over their rate with 429.
func (l *agentLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(auth.AgentFromContext(r.Context())) {
			types.ErrRateLimited().WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
