package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError is returned by the ElevenLabs client for non-2xx replies
// so the adapter can classify transient vs permanent failures.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elevenlabs status %d: %s", e.Status, e.Body)
}

type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// ElevenLabsSynthesizer calls the ElevenLabs HTTP text-to-speech API.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	return &ElevenLabsSynthesizer{
		cfg: cfg,
		// Per-attempt deadlines come from the caller's context.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, string, error) {
	voiceID := strings.TrimSpace(profile.VoiceID)
	if voiceID == "" {
		voiceID = s.cfg.VoiceID
	}
	if voiceID == "" {
		return nil, "", fmt.Errorf("voice_id is required")
	}
	modelID := strings.TrimSpace(profile.ModelID)
	if modelID == "" {
		modelID = s.cfg.ModelID
	}

	stability := clamp01(profile.Stability, 0.5)
	similarity := clamp01(profile.SimilarityBoost, 0.8)

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": modelID,
		"voice_settings": map[string]any{
			"stability":        stability,
			"similarity_boost": similarity,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID) +
		"?output_format=" + url.QueryEscape(s.cfg.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, "", &StatusError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	return audio, s.cfg.OutputFormat, nil
}

// Warmup validates the API key with a cheap voices listing.
func (s *ElevenLabsSynthesizer) Warmup(ctx context.Context) error {
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/voices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return &StatusError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func clamp01(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	if v > 1 {
		return 1
	}
	return v
}
