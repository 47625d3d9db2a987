package registry

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// providerLimiter enforces a per-provider requests-per-minute budget before
// an outbound call, the same token-bucket shape as the teacher's
// tokenBucketLimiter (agent/rate_limiter_token_bucket.go), scoped per
// provider name instead of per arbitrary caller key.
type providerLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func newProviderLimiter() *providerLimiter {
	return &providerLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (p *providerLimiter) configure(provider string, requestsPerMinute int) {
	if requestsPerMinute <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute
	if burst < 1 {
		burst = 1
	}
	p.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until provider's budget admits one more request, or ctx is
// done. Providers with no configured limit never block here.
func (p *providerLimiter) Wait(ctx context.Context, provider string) error {
	p.mu.RLock()
	limiter, ok := p.limiters[provider]
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
