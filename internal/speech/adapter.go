package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gmorelli/aria/internal/reliability"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 10 * time.Second
	backoffBase           = 250 * time.Millisecond
	backoffCap            = 2 * time.Second
)

// AdapterConfig tunes the primary-then-fallback synthesis strategy.
type AdapterConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// Adapter mediates between the primary and fallback synthesizers.
// Speak never returns an error: primary failures retry on transient
// errors, short-circuit to fallback on permanent ones, and degrade to a
// text-only outcome when the fallback fails too. The adapter holds no
// per-session state; serializing calls within one session is the
// session controller's job.
type Adapter struct {
	primary  Synthesizer
	fallback Synthesizer
	cfg      AdapterConfig
	log      zerolog.Logger

	// sleep is swapped out in tests to keep backoff instantaneous.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAdapter(primary, fallback Synthesizer, cfg AdapterConfig, log zerolog.Logger) *Adapter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	return &Adapter{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		log:      log,
		sleep:    sleepCtx,
	}
}

// Speak synthesizes text and reports which provider served it. The text
// recorded in the outcome is the sanitized form actually rendered, so
// transcripts stay consistent even in text-only degradation.
func (a *Adapter) Speak(ctx context.Context, text string, profile VoiceProfile) Outcome {
	clean := SanitizeForSpeech(text)
	if clean == "" {
		return Outcome{Provider: ProviderNone, TextOnly: true, Text: text, Detail: "nothing renderable after filtering"}
	}

	if a.primary != nil {
		audio, format, err := a.trySynthesize(ctx, a.primary, clean, profile)
		if err == nil {
			return Outcome{Provider: ProviderPrimary, Played: true, Text: clean, Audio: audio, Format: format}
		}
		a.log.Warn().Err(err).Msg("primary synthesis failed, switching to fallback")
	}

	if a.fallback != nil {
		fbCtx, cancel := context.WithTimeout(ctx, a.cfg.AttemptTimeout)
		audio, format, err := a.fallback.Synthesize(fbCtx, clean, profile)
		cancel()
		if err == nil {
			return Outcome{Provider: ProviderFallback, Played: true, Text: clean, Audio: audio, Format: format}
		}
		a.log.Warn().Err(err).Msg("fallback synthesis failed, degrading to text only")
		return Outcome{Provider: ProviderNone, TextOnly: true, Text: clean, Detail: err.Error()}
	}

	return Outcome{Provider: ProviderNone, TextOnly: true, Text: clean, Detail: "no synthesizer available"}
}

// trySynthesize runs the bounded retry loop against the primary
// provider. Permanent errors (bad credentials, quota, rejected input)
// stop retrying immediately; transient ones back off and try again.
func (a *Adapter) trySynthesize(ctx context.Context, syn Synthesizer, text string, profile VoiceProfile) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := a.sleep(ctx, reliability.ExponentialBackoff(attempt-1, backoffBase, backoffCap)); err != nil {
				return nil, "", err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.AttemptTimeout)
		audio, format, err := syn.Synthesize(attemptCtx, text, profile)
		cancel()
		if err == nil {
			return audio, format, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		if isPermanent(err) || !isTransient(err) {
			// Retrying only helps transient failures; everything else
			// goes straight to the fallback.
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("primary exhausted %d attempts: %w", a.cfg.MaxAttempts, lastErr)
}

// Warmup probes both providers. The session can start as long as one of
// them is usable; only a dead pair fails warm-up.
func (a *Adapter) Warmup(ctx context.Context) error {
	var primaryErr, fallbackErr error

	if w, ok := a.primary.(Warmer); ok && a.primary != nil {
		primaryErr = w.Warmup(ctx)
	} else if a.primary == nil {
		primaryErr = errors.New("no primary synthesizer")
	}
	if primaryErr == nil {
		return nil
	}

	if w, ok := a.fallback.(Warmer); ok && a.fallback != nil {
		fallbackErr = w.Warmup(ctx)
	} else if a.fallback == nil {
		fallbackErr = errors.New("no fallback synthesizer")
	}
	if fallbackErr == nil {
		a.log.Warn().Err(primaryErr).Msg("primary warm-up failed, fallback is ready")
		return nil
	}

	return fmt.Errorf("primary warm-up failed: %v; fallback warm-up failed: %w", primaryErr, fallbackErr)
}

func isPermanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return reliability.IsPermanentHTTPStatus(se.Status)
	}
	return false
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return reliability.IsRetryableHTTPStatus(se.Status)
	}
	return reliability.IsTransientNetworkError(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
