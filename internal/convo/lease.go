package convo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld reports that another holder currently owns the thread's
// lease. acquireLease does not return it: it waits for the lease instead.
var ErrLeaseHeld = errors.New("thread lease is held by another caller")

// releaseScript deletes the lease key only if it still holds this holder's
// token, so a holder can never release a lease it no longer owns (e.g.
// after its TTL expired and someone else acquired it).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// lease is a short-lived, thread-scoped mutual-exclusion token implementing
// spec.md §4.C's "SETNX-based lease with a short timeout" and §9's redesign
// note calling for a fencing token. acquireLease and lease.release are used
// internally by AppendTurn; callers of Store never see a lease directly.
type lease struct {
	client redis.UniversalClient
	key    string
	fence  int64
	holder string
}

func leaseKey(threadID string) string { return "thread:" + threadID + ":lease" }
func fenceKey(threadID string) string { return "thread:" + threadID + ":fence" }

// acquireLease blocks, retrying with a small fixed backoff, until it holds
// the lease for threadID or ctx is done. The fencing token (a monotonic
// counter, incremented on every successful acquisition) is recorded on the
// returned lease; AppendTurn does not compare it before writing, so a
// writer whose lease has expired is not detected as stale and mutual
// exclusion rests on the lease TTL alone.
func acquireLease(ctx context.Context, client redis.UniversalClient, threadID string, ttl time.Duration) (*lease, error) {
	holder := uuid.NewString()
	key := leaseKey(threadID)

	for {
		ok, err := client.SetNX(ctx, key, holder, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			fence, err := client.Incr(ctx, fenceKey(threadID)).Result()
			if err != nil {
				_ = releaseScript.Run(ctx, client, []string{key}, holder).Err()
				return nil, err
			}
			return &lease{client: client, key: key, fence: fence, holder: holder}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// release drops the lease if this holder still owns it. Safe to call more
// than once.
func (l *lease) release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.holder).Err()
}
