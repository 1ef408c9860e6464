package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
)

// Retrying retries transient completion failures with a fixed delay
type Retrying struct {
	next     Completer
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

func NewRetrying(next Completer, attempts int, delay time.Duration, logger *zap.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{
		next:     next,
		attempts: uint(attempts),
		delay:    delay,
		logger:   logger,
	}
}

func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			out, err := r.next.Complete(ctx, req)
			if err != nil {
				return err
			}
			text = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("Retrying completion",
				zap.String("provider", r.next.Name()),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *Retrying) Name() string  { return r.next.Name() }
func (r *Retrying) Model() string { return r.next.Model() }

// isRetryable rejects cancellation and client errors other than rate limits
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrOffline) {
		return false
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return retryableStatus(openaiErr.StatusCode)
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(anthropicErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return true
	}
	return code < 400 || code >= 500
}
