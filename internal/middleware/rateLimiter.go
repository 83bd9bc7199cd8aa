package middleware

import (
	"sync"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
	"golang.org/x/time/rate"
)

var limiterInstance = NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client ip. Buckets idle longer than
// limiterIdleTTL are dropped on the next lookup that triggers a prune.
type IPRateLimiter struct {
	ips       map[string]*visitor
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
	lastPrune time.Time
}

const limiterIdleTTL = 10 * time.Minute

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*visitor), rateLimit: r, burstRate: b, lastPrune: time.Now()}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	if now.Sub(i.lastPrune) > limiterIdleTTL {
		for k, v := range i.ips {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(i.ips, k)
			}
		}
		i.lastPrune = now
	}
	v, exists := i.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.ips[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Len is the number of tracked ips.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}
