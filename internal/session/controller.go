package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gmorelli/aria/internal/archive"
	"github.com/gmorelli/aria/internal/broadcast"
	"github.com/gmorelli/aria/internal/calendar"
	"github.com/gmorelli/aria/internal/command"
	"github.com/gmorelli/aria/internal/observability"
	"github.com/gmorelli/aria/internal/protocol"
	"github.com/gmorelli/aria/internal/speech"
)

const (
	calendarApology   = "Unable to fetch calendar events."
	warmupTimeout     = 15 * time.Second
	calendarTimeout   = 10 * time.Second
	archiveTimeout    = 5 * time.Second
	upcomingDays      = 7
	stopReasonRequest = "stop requested"
)

// Controller drives the session lifecycle: start with a voice warm-up,
// interpret each utterance, speak the reply, and tear down cleanly.
// Per-session input handling is serialized through the table's input
// slot; a stop during synthesis invalidates the in-flight result.
type Controller struct {
	table   *Table
	voice   *speech.Adapter
	cal     calendar.Service
	store   archive.Store
	hub     *broadcast.Hub
	metrics *observability.Metrics
	log     zerolog.Logger
	profile speech.VoiceProfile
}

func NewController(
	table *Table,
	voice *speech.Adapter,
	cal calendar.Service,
	store archive.Store,
	hub *broadcast.Hub,
	metrics *observability.Metrics,
	profile speech.VoiceProfile,
	log zerolog.Logger,
) *Controller {
	c := &Controller{
		table:   table,
		voice:   voice,
		cal:     cal,
		store:   store,
		hub:     hub,
		metrics: metrics,
		log:     log,
		profile: profile,
	}
	table.SetExpireHook(c.onExpired)
	return c
}

// InputResult reports what one utterance produced.
type InputResult struct {
	Session *Session       `json:"session"`
	Action  command.Kind   `json:"action"`
	Reply   string         `json:"reply"`
	Speech  speech.Outcome `json:"speech"`
}

// Start creates the owner's session and warms up the voice pipeline.
// A failed warm-up leaves the session in StateError; ErrOwnerBusy
// means a live session already exists.
func (c *Controller) Start(ctx context.Context, owner string) (*Session, error) {
	s, err := c.table.Create(owner)
	if err != nil {
		return nil, err
	}
	log := c.log.With().Str("session_id", s.ID).Str("owner", owner).Logger()
	log.Info().Msg("session starting")

	c.publishState(s.Owner, s.ID, StateInactive, StateStarting, "")
	c.metrics.RecordSessionEvent(string(StateStarting))
	c.metrics.SetActiveSessions(c.table.ActiveCount())

	gen, err := c.table.Generation(s.ID)
	if err != nil {
		return nil, err
	}

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	warmErr := c.voice.Warmup(warmCtx)
	cancel()
	if warmErr != nil {
		log.Error().Err(warmErr).Msg("voice warm-up failed")
		if _, applied, err := c.table.SetStateIf(s.ID, gen, StateError, "voice warm-up failed"); err == nil && applied {
			c.publishState(owner, s.ID, StateStarting, StateError, "voice warm-up failed")
			c.metrics.RecordSessionEvent(string(StateError))
			c.metrics.SetActiveSessions(c.table.ActiveCount())
		}
		return c.table.Snapshot(s.ID)
	}

	if _, applied, err := c.table.SetStateIf(s.ID, gen, StateListening, ""); err != nil || !applied {
		return c.table.Snapshot(s.ID)
	}
	c.publishState(owner, s.ID, StateStarting, StateListening, "ready")
	c.metrics.RecordSessionEvent(string(StateListening))
	log.Info().Msg("session started")
	return c.table.Snapshot(s.ID)
}

// SubmitInput handles one utterance. A session that is mid-utterance
// rejects concurrent input with ErrBusy rather than queueing it.
func (c *Controller) SubmitInput(ctx context.Context, sessionID, text string) (*InputResult, error) {
	if err := c.table.TryAcquire(sessionID); err != nil {
		if err == ErrBusy {
			c.metrics.RecordBusyRejection()
		}
		return nil, err
	}
	defer c.table.Release(sessionID)

	s, err := c.table.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if s.State.Terminal() {
		return nil, ErrEnded
	}
	if s.State == StateStarting {
		// Warm-up has not finished; the caller should retry.
		c.metrics.RecordBusyRejection()
		return nil, ErrBusy
	}
	gen, err := c.table.Generation(sessionID)
	if err != nil {
		return nil, err
	}
	log := c.log.With().Str("session_id", sessionID).Logger()

	c.appendEntry(sessionID, s.Owner, gen, TranscriptEntry{Role: RoleUser, Text: text, Level: LevelInfo})

	act := command.Interpret(text)
	c.metrics.RecordCommand(string(act.Kind))
	log.Debug().Str("kind", string(act.Kind)).Msg("interpreted input")

	reply := command.Reply(act)
	if act.IsCalendar() {
		reply = c.calendarReply(ctx, act)
	}

	outcome := c.speakCycle(ctx, sessionID, s.Owner, gen, reply, "")
	c.metrics.RecordSpeechOutcome(string(outcome.Provider))

	if act.Kind == command.KindEndSession {
		if stopped, err := c.Stop(ctx, sessionID, "user said goodbye"); err == nil {
			return &InputResult{Session: stopped, Action: act.Kind, Reply: reply, Speech: outcome}, nil
		}
	}

	snap, err := c.table.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	return &InputResult{Session: snap, Action: act.Kind, Reply: reply, Speech: outcome}, nil
}

// Stop ends the session immediately. Any synthesis still in flight is
// discarded when it completes. Stopping twice is a no-op.
func (c *Controller) Stop(_ context.Context, sessionID, reason string) (*Session, error) {
	if reason == "" {
		reason = stopReasonRequest
	}
	prev, s, err := c.table.Stop(sessionID, StateStopped, reason)
	if err != nil {
		return nil, err
	}
	if prev.Terminal() {
		return s, nil
	}

	c.publishState(s.Owner, s.ID, prev, StateStopped, reason)
	c.hub.Forget(s.ID)
	c.metrics.RecordSessionEvent(string(StateStopped))
	c.metrics.SetActiveSessions(c.table.ActiveCount())
	c.log.Info().Str("session_id", s.ID).Str("reason", reason).Msg("session stopped")
	return s, nil
}

// Status returns a snapshot of the session.
func (c *Controller) Status(sessionID string) (*Session, error) {
	return c.table.Snapshot(sessionID)
}

// StatusByOwner returns the owner's most recent session.
func (c *Controller) StatusByOwner(owner string) (*Session, error) {
	return c.table.SnapshotByOwner(owner)
}

// LiveSession returns the id of the owner's live session.
func (c *Controller) LiveSession(owner string) (string, bool) {
	return c.table.LiveByOwner(owner)
}

// speakCycle runs one listening -> speaking -> listening hop. The
// transition and the transcript append are generation-checked so a stop
// issued mid-synthesis wins and the late result vanishes.
func (c *Controller) speakCycle(ctx context.Context, sessionID, owner string, gen uint64, reply, reason string) speech.Outcome {
	if _, applied, err := c.table.SetStateIf(sessionID, gen, StateSpeaking, reason); err != nil || !applied {
		return speech.Outcome{Provider: speech.ProviderNone, TextOnly: true, Text: reply, Detail: "session no longer accepting output"}
	}
	c.publishState(owner, sessionID, StateListening, StateSpeaking, reason)
	c.metrics.RecordSessionEvent(string(StateSpeaking))

	started := time.Now()
	outcome := c.voice.Speak(ctx, reply, c.profile)
	c.metrics.ObserveSynthesisLatency(string(outcome.Provider), time.Since(started))

	level := LevelSuccess
	if outcome.TextOnly {
		level = LevelError
	}
	c.appendEntry(sessionID, owner, gen, TranscriptEntry{
		Role:     RoleAssistant,
		Text:     outcome.Text,
		Level:    level,
		Provider: string(outcome.Provider),
		TextOnly: outcome.TextOnly,
	})

	if _, applied, err := c.table.SetStateIf(sessionID, gen, StateListening, ""); err == nil && applied {
		c.publishState(owner, sessionID, StateSpeaking, StateListening, "")
		c.metrics.RecordSessionEvent(string(StateListening))
	}
	return outcome
}

func (c *Controller) calendarReply(ctx context.Context, act command.Action) string {
	if c.cal == nil {
		return calendarApology
	}
	calCtx, cancel := context.WithTimeout(ctx, calendarTimeout)
	defer cancel()

	var reply string
	var err error
	switch act.Kind {
	case command.KindCalendarToday:
		reply, err = c.cal.TodaySchedule(calCtx)
	case command.KindCalendarNext:
		reply, err = c.cal.NextMeeting(calCtx)
	case command.KindCalendarFree:
		reply, err = c.cal.FreeTimeToday(calCtx)
	case command.KindCalendarWeek:
		reply, err = c.cal.UpcomingEvents(calCtx, upcomingDays)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("kind", string(act.Kind)).Msg("calendar lookup failed")
		return calendarApology
	}
	return reply
}

// appendEntry records a transcript line, pushes it to subscribers and
// archives it. A stale generation means the session was stopped while
// the entry was being produced; the entry is discarded silently.
func (c *Controller) appendEntry(sessionID, owner string, gen uint64, te TranscriptEntry) {
	if te.At.IsZero() {
		te.At = time.Now().UTC()
	}
	applied, err := c.table.AppendIf(sessionID, gen, te)
	if err != nil || !applied {
		return
	}

	c.hub.Publish(owner, protocol.Event{
		Type:      protocol.EventLog,
		SessionID: sessionID,
		At:        te.At,
		Role:      te.Role,
		Text:      te.Text,
		Level:     te.Level,
		Provider:  te.Provider,
		TextOnly:  te.TextOnly,
	})

	if c.store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := c.store.SaveEntry(saveCtx, archive.Entry{
			SessionID: sessionID,
			Owner:     owner,
			Role:      te.Role,
			Text:      te.Text,
			Level:     te.Level,
			Provider:  te.Provider,
			TextOnly:  te.TextOnly,
			At:        te.At,
		}); err != nil {
			c.log.Warn().Err(err).Msg("archive write failed")
		}
	}
}

func (c *Controller) publishState(owner, sessionID string, prev, next State, reason string) {
	c.hub.Publish(owner, protocol.Event{
		Type:      protocol.EventStateChange,
		SessionID: sessionID,
		State:     string(next),
		PrevState: string(prev),
		Reason:    reason,
	})
}

func (c *Controller) onExpired(prev State, s *Session) {
	c.publishState(s.Owner, s.ID, prev, StateStopped, s.StateReason)
	c.hub.Forget(s.ID)
	c.metrics.RecordSessionEvent(string(StateStopped))
	c.metrics.SetActiveSessions(c.table.ActiveCount())
	c.log.Info().Str("session_id", s.ID).Msg("session expired for inactivity")
}
