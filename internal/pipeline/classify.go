package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/gruntworks-dev/orchestrator/internal/apperrors"
)

// classifyProviderError maps a raw error from Provider.Complete to
// ProviderUnavailable (transient — retried once) or ProviderFatal
// (credentials, quota — not retried), mirroring the teacher's
// IsRateLimitError/IsTimeoutError vs IsAPIKeyError split
// (agent/errors.go), generalized here to work across adapters rather than
// one SDK's concrete error type.
func classifyProviderError(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.New(apperrors.CodeProviderUnavailable, "provider call timed out", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "rate limit", "429", "too many requests"):
		return apperrors.New(apperrors.CodeProviderUnavailable, "provider rate limit exceeded", err)
	case containsAny(msg, "timeout", "timed out", "connection reset", "temporarily unavailable", "503", "502"):
		return apperrors.New(apperrors.CodeProviderUnavailable, "provider temporarily unavailable", err)
	case containsAny(msg, "invalid api key", "unauthorized", "401", "403", "quota", "insufficient_quota"):
		return apperrors.New(apperrors.CodeProviderFatal, "provider rejected credentials or quota", err)
	default:
		return apperrors.New(apperrors.CodeProviderFatal, "provider call failed", err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
