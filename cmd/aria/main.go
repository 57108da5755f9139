package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gmorelli/aria/internal/archive"
	"github.com/gmorelli/aria/internal/auth"
	"github.com/gmorelli/aria/internal/broadcast"
	"github.com/gmorelli/aria/internal/calendar"
	"github.com/gmorelli/aria/internal/config"
	"github.com/gmorelli/aria/internal/httpapi"
	"github.com/gmorelli/aria/internal/logging"
	"github.com/gmorelli/aria/internal/observability"
	"github.com/gmorelli/aria/internal/session"
	"github.com/gmorelli/aria/internal/speech"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aria: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logging.New(os.Stderr, cfg.LogLevel)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("archive store: %w", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Info().Msg("archive: in-memory (set DATABASE_URL for persistence)")
	} else {
		log.Info().Msg("archive: postgres")
	}

	adapter, profile, err := buildSpeech(cfg, log)
	if err != nil {
		return err
	}

	cal := buildCalendar(ctx, cfg, log)

	issuer, err := auth.NewIssuer(cfg.AuthSecret, cfg.AuthTokenTTL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	hub := broadcast.NewHub(cfg.SubscriberBuffer, logging.Component(log, "broadcast"))
	hub.SetDropHandler(func(string) { metrics.RecordBroadcastDrop() })

	table := session.NewTable(cfg.TranscriptCap, cfg.SessionInactivityTimeout)
	ctrl := session.NewController(table, adapter, cal, store, hub, metrics, profile, logging.Component(log, "session"))
	table.StartJanitor(ctx, 15*time.Second)

	server := httpapi.New(cfg, ctrl, hub, cal, store, issuer, metrics, logging.Component(log, "http"))
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.BindAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildSpeech picks the primary synthesizer by configuration: prefer
// ElevenLabs when an API key is present, fall back to the local CLI,
// and keep a mock pipeline so dev mode works on a machine with neither.
func buildSpeech(cfg config.Config, log zerolog.Logger) (*speech.Adapter, speech.VoiceProfile, error) {
	speechLog := logging.Component(log, "speech")
	adapterCfg := speech.AdapterConfig{
		MaxAttempts:    cfg.SpeechMaxAttempts,
		AttemptTimeout: cfg.SpeechAttemptTimeout,
	}
	profile := speech.VoiceProfile{
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
	}

	newElevenLabs := func() *speech.ElevenLabsSynthesizer {
		return speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabsAPIKey,
			BaseURL:      cfg.ElevenLabsBaseURL,
			VoiceID:      cfg.ElevenLabsVoiceID,
			ModelID:      cfg.ElevenLabsModelID,
			OutputFormat: cfg.ElevenLabsOutputFormat,
		})
	}
	newLocal := func() (*speech.LocalSynthesizer, error) {
		return speech.NewLocalSynthesizer(speech.LocalConfig{
			CLI:   cfg.LocalTTSCLI,
			Voice: cfg.LocalTTSVoice,
		})
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	switch mode {
	case "elevenlabs":
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return nil, profile, fmt.Errorf("speech: SPEECH_PROVIDER=elevenlabs but ELEVENLABS_API_KEY is empty")
		}
		local, err := newLocal()
		if err != nil {
			log.Warn().Err(err).Msg("speech: local fallback unavailable")
			return speech.NewAdapter(newElevenLabs(), nil, adapterCfg, speechLog), profile, nil
		}
		log.Info().Msg("speech: elevenlabs with local fallback")
		return speech.NewAdapter(newElevenLabs(), local, adapterCfg, speechLog), profile, nil

	case "local":
		local, err := newLocal()
		if err != nil {
			return nil, profile, fmt.Errorf("speech: %w", err)
		}
		log.Info().Msg("speech: local only")
		return speech.NewAdapter(local, nil, adapterCfg, speechLog), profile, nil

	case "mock":
		log.Info().Msg("speech: mock")
		return speech.NewAdapter(speech.NewMockSynthesizer(), nil, adapterCfg, speechLog), profile, nil

	case "", "auto":
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
			local, err := newLocal()
			if err != nil {
				log.Warn().Err(err).Msg("speech: local fallback unavailable")
				local = nil
			}
			log.Info().Msg("speech: elevenlabs (auto)")
			if local != nil {
				return speech.NewAdapter(newElevenLabs(), local, adapterCfg, speechLog), profile, nil
			}
			return speech.NewAdapter(newElevenLabs(), nil, adapterCfg, speechLog), profile, nil
		}
		if local, err := newLocal(); err == nil {
			log.Info().Msg("speech: local (auto)")
			return speech.NewAdapter(local, nil, adapterCfg, speechLog), profile, nil
		}
		log.Warn().Msg("speech: no provider available, using mock")
		return speech.NewAdapter(speech.NewMockSynthesizer(), nil, adapterCfg, speechLog), profile, nil

	default:
		return nil, profile, fmt.Errorf("speech: unknown provider %q", cfg.SpeechProvider)
	}
}

// buildCalendar wires Google Calendar when credentials are on disk. A
// missing setup drops to the canned mock so the rest of the assistant
// still works.
func buildCalendar(ctx context.Context, cfg config.Config, log zerolog.Logger) calendar.Service {
	mode := strings.ToLower(strings.TrimSpace(cfg.CalendarMode))
	switch mode {
	case "off":
		log.Info().Msg("calendar: disabled")
		return nil
	case "mock":
		log.Info().Msg("calendar: mock")
		return calendar.NewMockService()
	}

	svc, err := calendar.NewGoogleService(ctx, calendar.GoogleConfig{
		CredentialsFile: cfg.CalendarCredentialsFile,
		TokenFile:       cfg.CalendarTokenFile,
		CalendarID:      cfg.CalendarID,
	})
	if err != nil {
		if mode == "google" {
			log.Error().Err(err).Msg("calendar: google setup failed")
			return nil
		}
		log.Warn().Err(err).Msg("calendar: google unavailable, using mock")
		return calendar.NewMockService()
	}
	log.Info().Msg("calendar: google")
	return svc
}
