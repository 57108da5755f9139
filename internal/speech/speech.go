package speech

import "context"

// Provider tags which synthesis backend produced an outcome.
type Provider string

const (
	ProviderPrimary  Provider = "primary"
	ProviderFallback Provider = "fallback"
	ProviderNone     Provider = "none"
)

// VoiceProfile carries per-call synthesis settings.
type VoiceProfile struct {
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

// Outcome is the result of one Speak call. Synthesis failure is never an
// error; the worst case is a text-only outcome.
type Outcome struct {
	Provider Provider
	Played   bool
	TextOnly bool
	Text     string
	Audio    []byte
	Format   string
	Detail   string
}

// Synthesizer renders text to audio bytes. Implementations are stateless
// and safe to share across sessions.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, string, error)
}

// Warmer is implemented by synthesizers that can probe their backend
// before first use.
type Warmer interface {
	Warmup(ctx context.Context) error
}
