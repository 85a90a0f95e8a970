package transcription

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/provider"
	"github.com/cometik/assessd/resilience"
)

// Orchestrator drives transcription through the registered providers. The
// primary provider is tried first with bounded, classified retries; when it
// is down or exhausted, remaining providers are tried in registration order.
// Safe for concurrent use; per-call state stays on the stack.
type Orchestrator struct {
	cfg      Config
	registry *provider.Registry[Provider]
	log      *logger.Logger
	breakers map[string]*resilience.CircuitBreaker
}

// NewOrchestrator builds an Orchestrator over the given registry. One
// circuit breaker is created per registered provider so a dead sidecar
// fails fast instead of burning the timeout on every attempt.
func NewOrchestrator(cfg Config, registry *provider.Registry[Provider], log *logger.Logger) *Orchestrator {
	cfg.ApplyDefaults()
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		log:      log.WithComponent("transcription"),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, name := range registry.List() {
		name := name
		bc := resilience.DefaultCircuitBreakerConfig("transcription-" + name)
		bc.OnStateChange = func(cbName string, from, to resilience.State) {
			o.log.Warn("provider circuit state changed", logger.Fields(
				logger.FieldProvider, name,
				"from", from.String(),
				"to", to.String(),
			))
		}
		o.breakers[name] = resilience.NewCircuitBreaker(bc)
	}
	return o
}

// Transcribe converts normalized audio to text. Exhausting every provider
// surfaces TRANSCRIPTION_UNAVAILABLE; empty text is never silently returned
// in place of an error.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, locale string) (*Result, error) {
	if locale == "" {
		locale = o.cfg.Locale
	}

	candidates := o.candidates()
	if len(candidates) == 0 {
		return nil, apperrors.ServiceUnavailable("transcription")
	}

	var lastErr error
	for _, p := range candidates {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled("transcribing")
		}
		if !p.IsAvailable(ctx) {
			o.log.Warn("provider unavailable, trying next", logger.Fields(
				logger.FieldProvider, p.Name(),
			))
			lastErr = fmt.Errorf("provider %s unavailable", p.Name())
			continue
		}

		result, err := o.transcribeWith(ctx, p, audio, locale)
		if err == nil {
			if result.Confidence < o.cfg.ConfidenceFloor {
				result.LowConfidence = true
				o.log.Info("transcript below confidence floor", logger.Fields(
					logger.FieldProvider, p.Name(),
					"confidence", result.Confidence,
					"floor", o.cfg.ConfidenceFloor,
				))
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled("transcribing")
		}
		lastErr = err
		o.log.Warn("provider exhausted", logger.Fields(
			logger.FieldProvider, p.Name(),
			logger.FieldError, err.Error(),
		))
	}

	return nil, apperrors.TranscriptionUnavailable(lastErr)
}

// transcribeWith runs one provider through its circuit breaker with bounded
// retries and a per-attempt timeout.
func (o *Orchestrator) transcribeWith(ctx context.Context, p Provider, audio []byte, locale string) (*Result, error) {
	breaker := o.breakers[p.Name()]
	timeout := o.cfg.AttemptTimeoutValue()

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = o.cfg.MaxAttempts
	retryCfg.RetryIf = func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return !IsPermanent(err)
	}
	retryCfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		o.log.Warn("transcription attempt failed, retrying", logger.Fields(
			logger.FieldProvider, p.Name(),
			"attempt", attempt,
			logger.FieldError, err.Error(),
			"backoff", backoff.String(),
		))
	}

	return resilience.Retry(ctx, retryCfg, func() (*Result, error) {
		var result *Result
		err := callThrough(breaker, func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			r, err := p.Transcribe(attemptCtx, Request{Audio: audio, Locale: locale})
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		return result, err
	})
}

// callThrough tolerates a nil breaker for providers registered after
// construction.
func callThrough(breaker *resilience.CircuitBreaker, fn func() error) error {
	if breaker == nil {
		return fn()
	}
	return breaker.Execute(fn)
}

// candidates returns the primary provider first, then the rest in
// registration order.
func (o *Orchestrator) candidates() []Provider {
	all := o.registry.Instances()
	out := make([]Provider, 0, len(all))
	if primary, ok := o.registry.Get(o.cfg.Provider); ok {
		out = append(out, primary)
	}
	for _, p := range all {
		if p.Name() == o.cfg.Provider {
			continue
		}
		out = append(out, p)
	}
	return out
}
