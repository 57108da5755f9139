package speech

import (
	"context"
	"encoding/base64"
	"strings"
)

// MockSynthesizer is used in dev mode when neither ElevenLabs nor a
// local CLI is available, and as a scriptable stub in tests.
type MockSynthesizer struct {
	// SynthesizeFunc, when set, overrides the default behavior.
	SynthesizeFunc func(ctx context.Context, text string, profile VoiceProfile) ([]byte, string, error)
	// WarmupErr is returned from Warmup when set.
	WarmupErr error

	Calls int
}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, string, error) {
	m.Calls++
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, profile)
	}
	if strings.TrimSpace(text) == "" {
		return nil, "", context.Canceled
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	return []byte(encoded), "mock_text_bytes", nil
}

func (m *MockSynthesizer) Warmup(_ context.Context) error { return m.WarmupErr }
