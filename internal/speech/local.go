package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type LocalConfig struct {
	CLI   string
	Voice string
}

// LocalSynthesizer shells out to an espeak-compatible CLI. It is the
// always-available fallback; it needs no network and no credentials,
// though it may still fail on unplayable input.
type LocalSynthesizer struct {
	cli   string
	voice string
}

func NewLocalSynthesizer(cfg LocalConfig) (*LocalSynthesizer, error) {
	cli := strings.TrimSpace(cfg.CLI)
	if cli == "" {
		cli = "espeak-ng"
	}
	path, err := exec.LookPath(cli)
	if err != nil {
		return nil, fmt.Errorf("local tts cli %q not found: %w", cli, err)
	}
	voice := strings.TrimSpace(cfg.Voice)
	if voice == "" {
		voice = "en-us"
	}
	return &LocalSynthesizer{cli: path, voice: voice}, nil
}

func (s *LocalSynthesizer) Synthesize(ctx context.Context, text string, _ VoiceProfile) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("empty text")
	}

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cli, "-v", s.voice, "--stdout", text)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, "", fmt.Errorf("local synthesis: %s", detail)
	}
	if out.Len() == 0 {
		return nil, "", fmt.Errorf("local synthesis produced no audio")
	}
	return out.Bytes(), "wav", nil
}

// Warmup confirms the CLI still resolves.
func (s *LocalSynthesizer) Warmup(_ context.Context) error {
	_, err := exec.LookPath(s.cli)
	return err
}
