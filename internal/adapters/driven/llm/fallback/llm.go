// Package fallback chains two LLM services so generation survives an
// outage of the primary provider.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// primaryShare is the part of the caller's remaining deadline given to the
// primary, so a primary timeout still leaves time for the secondary.
const primaryShare = 0.6

// LLMService sends each call to the primary and retries it once against
// the secondary when the primary fails or runs out of its share of the
// deadline. Caller cancellation is never retried.
type LLMService struct {
	primary   driven.LLMService
	secondary driven.LLMService
}

// New chains primary and secondary. With a nil secondary the primary is
// returned unwrapped.
func New(primary, secondary driven.LLMService) driven.LLMService {
	if secondary == nil {
		return primary
	}
	return &LLMService{primary: primary, secondary: secondary}
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.Chat(ctx, []driven.ChatMessage{{Role: "user", Content: prompt}}, opts)
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.GenerateOptions) (string, error) {
	primaryCtx, cancel := primaryContext(ctx)
	out, err := s.primary.Chat(primaryCtx, messages, opts)
	cancel()
	if err == nil || ctx.Err() != nil {
		return out, err
	}

	logger.Warn("LLM %s failed, falling back to %s: %v", s.primary.ModelName(), s.secondary.ModelName(), err)
	out, fbErr := s.secondary.Chat(ctx, messages, opts)
	if fbErr != nil {
		return "", fmt.Errorf("primary: %w; fallback: %w", err, fbErr)
	}
	return out, nil
}

func primaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(float64(time.Until(deadline))*primaryShare))
}

// ModelName reports both models.
func (s *LLMService) ModelName() string {
	return s.primary.ModelName() + " (fallback " + s.secondary.ModelName() + ")"
}

// Ping succeeds when either service is reachable.
func (s *LLMService) Ping(ctx context.Context) error {
	err := s.primary.Ping(ctx)
	if err == nil {
		return nil
	}
	if fbErr := s.secondary.Ping(ctx); fbErr != nil {
		return fmt.Errorf("primary: %w; fallback: %w", err, fbErr)
	}
	return nil
}

// Close releases both services.
func (s *LLMService) Close() error {
	return errors.Join(s.primary.Close(), s.secondary.Close())
}
