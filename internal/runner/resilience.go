package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/pipetask/internal/logger"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts         int           // Attempts per task including the first (default 3)
	InitialInterval     time.Duration // Initial retry interval (default 1s)
	MaxInterval         time.Duration // Maximum retry interval (default 30s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:         3,
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerConfig configures the per-type circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Failures that open the breaker (default 5)
	Timeout             time.Duration // Time spent open before probing (default 30s)
	MaxRequests         uint32        // Probes allowed while half-open (default 1)
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		MaxRequests:         1,
	}
}

// BreakerRegistry manages one circuit breaker per task type, so a type whose
// routine keeps failing stops being launched while other types continue.
type BreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	log      logger.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a new circuit breaker registry.
func NewBreakerRegistry(cfg BreakerConfig, log logger.Logger) *BreakerRegistry {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	if log == nil {
		log = logger.Discard()
	}
	return &BreakerRegistry{
		cfg:      cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for taskType, creating it on first use.
func (r *BreakerRegistry) Get(taskType string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[taskType]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        taskType,
		MaxRequests: r.cfg.MaxRequests,
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.log.Warn("circuit breaker state change", "type", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is not a routine failure.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[taskType] = cb
	return cb
}

// retryFunc is told about each failed attempt that will be retried.
type retryFunc func(attempt int, err error, wait time.Duration)

// runWithRetry calls fn through cb with exponential backoff. It returns the
// number of attempts made and the last error.
func runWithRetry(ctx context.Context, fn func(ctx context.Context) error, cb *gobreaker.CircuitBreaker, cfg RetryConfig, onRetry retryFunc) (int, error) {
	attempts := 0

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		attempts++
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		if err == nil {
			return nil
		}

		// Open breaker or cancelled context: don't retry.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.Multiplier = cfg.Multiplier
	policy.RandomizationFactor = cfg.RandomizationFactor
	policy.MaxElapsedTime = 0

	var b backoff.BackOff = policy
	if cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1))
	}

	notify := func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	return attempts, err
}
