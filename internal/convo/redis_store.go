package convo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gruntworks-dev/orchestrator/internal/apperrors"
	"github.com/gruntworks-dev/orchestrator/internal/logging"
)

// RedisStore is the Store implementation backing the Conversation Store,
// grounded on the teacher's RedisBackend (agent/memory_backend_redis.go):
// same TTL-refresh-on-every-write behavior and key-prefix namespacing, but
// keyed per-thread across two keys (meta hash + turns list) instead of one
// JSON blob, and fronted by a per-thread lease (lease.go) that the teacher
// had no equivalent of.
type RedisStore struct {
	client   redis.UniversalClient
	log      logging.Logger
	prefix   string
	maxTurns int
	ttl      time.Duration
	leaseTTL time.Duration
}

// NewRedisStore wraps an existing client. maxTurns and ttl come from
// config.Config's MaxConversationTurns / ConversationTimeout.
func NewRedisStore(client redis.UniversalClient, maxTurns int, ttl time.Duration, log logging.Logger) *RedisStore {
	if log == nil {
		log = logging.Noop{}
	}
	return &RedisStore{
		client:   client,
		log:      log,
		prefix:   "grunts:thread:",
		maxTurns: maxTurns,
		ttl:      ttl,
		leaseTTL: 2 * time.Second,
	}
}

func (s *RedisStore) metaKey(id string) string  { return s.prefix + id + ":meta" }
func (s *RedisStore) turnsKey(id string) string { return s.prefix + id + ":turns" }

type metaFields struct {
	ToolName          string `redis:"tool_name"`
	Metadata          string `redis:"metadata"` // JSON-encoded map[string]string
	CreatedAt         int64  `redis:"created_at"`
	UpdatedAt         int64  `redis:"updated_at"`
	TotalTurns        int    `redis:"total_turns"`
	TotalInputTokens  int    `redis:"total_input_tokens"`
	TotalOutputTokens int    `redis:"total_output_tokens"`
}

// CreateThread implements Store. Only the meta hash (with its TTL) is
// written here, in a single pipelined transaction; the turns list is
// created by the first AppendTurn.
func (s *RedisStore) CreateThread(ctx context.Context, toolName string, initialMetadata map[string]string) (string, error) {
	id := uuid.NewString()
	metaJSON, err := json.Marshal(initialMetadata)
	if err != nil {
		return "", fmt.Errorf("convo: marshaling initial metadata: %w", err)
	}
	now := time.Now().Unix()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.metaKey(id), map[string]interface{}{
			"tool_name":           toolName,
			"metadata":            string(metaJSON),
			"created_at":          now,
			"updated_at":          now,
			"total_turns":         0,
			"total_input_tokens":  0,
			"total_output_tokens": 0,
		})
		pipe.Expire(ctx, s.metaKey(id), s.ttl)
		// The turns key is created lazily on first append (RPush on a
		// missing key creates it); priming it here with an empty marker
		// would complicate LRange parsing for no benefit, but it still
		// needs its own TTL once turns exist, handled in AppendTurn.
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("convo: creating thread: %w", err)
	}
	return id, nil
}

// GetThread implements Store.
func (s *RedisStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	return s.loadThread(ctx, id)
}

func (s *RedisStore) loadThread(ctx context.Context, id string) (*Thread, error) {
	meta, err := s.client.HGetAll(ctx, s.metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("convo: loading thread meta: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil // miss and expiry are indistinguishable
	}

	raw, err := s.client.LRange(ctx, s.turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("convo: loading thread turns: %w", err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("convo: decoding turn: %w", err)
		}
		turns = append(turns, t)
	}

	var metadata map[string]string
	if m := meta["metadata"]; m != "" {
		if err := json.Unmarshal([]byte(m), &metadata); err != nil {
			return nil, fmt.Errorf("convo: decoding metadata: %w", err)
		}
	}

	thread := &Thread{
		ID:       id,
		ToolName: meta["tool_name"],
		Metadata: metadata,
		Turns:    turns,
		Stats: Stats{
			TotalTurns:        atoiOr(meta["total_turns"], len(turns)),
			TotalInputTokens:  atoiOr(meta["total_input_tokens"], 0),
			TotalOutputTokens: atoiOr(meta["total_output_tokens"], 0),
		},
		CreatedAt: unixOr(meta["created_at"]),
		UpdatedAt: unixOr(meta["updated_at"]),
	}
	return thread, nil
}

// AppendTurn implements Store. Concurrent appends to the same id are
// serialized via acquireLease; the append itself (read-modify-write across
// two keys) executes only while the lease is held, and the lease's TTL
// (leaseTTL) bounds how long a stuck holder can block others.
func (s *RedisStore) AppendTurn(ctx context.Context, id string, turn Turn) (*Thread, error) {
	l, err := acquireLease(ctx, s.client, id, s.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("convo: acquiring lease: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(releaseCtx)
	}()

	thread, err := s.loadThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, apperrors.New(apperrors.CodeThreadNotFound, fmt.Sprintf("thread %q not found or expired", id), apperrors.ErrThreadNotFound)
	}
	if thread.Full(s.maxTurns) {
		return nil, apperrors.New(apperrors.CodeThreadFull, fmt.Sprintf("thread %q has reached its turn cap", id), apperrors.ErrThreadFull)
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	turnJSON, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("convo: marshaling turn: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.turnsKey(id), turnJSON)
		pipe.Expire(ctx, s.turnsKey(id), s.ttl)
		pipe.HIncrBy(ctx, s.metaKey(id), "total_turns", 1)
		pipe.HIncrBy(ctx, s.metaKey(id), "total_input_tokens", int64(turn.InputTokens))
		pipe.HIncrBy(ctx, s.metaKey(id), "total_output_tokens", int64(turn.OutputTokens))
		pipe.HSet(ctx, s.metaKey(id), "updated_at", now)
		pipe.Expire(ctx, s.metaKey(id), s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("convo: appending turn: %w", err)
	}

	thread.Turns = append(thread.Turns, turn)
	thread.Stats.TotalTurns++
	thread.Stats.TotalInputTokens += turn.InputTokens
	thread.Stats.TotalOutputTokens += turn.OutputTokens
	thread.UpdatedAt = time.Unix(now, 0)
	return thread, nil
}

// Ping checks the Redis connection, used by the Status Plane's health check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func atoiOr(s string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func unixOr(s string) time.Time {
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
