package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrOwnerBusy = errors.New("owner already has a live session")
	ErrBusy      = errors.New("session is busy speaking")
	ErrEnded     = errors.New("session has ended")
)

const defaultTranscriptCap = 200

// entry pairs the session record with its concurrency bookkeeping. The
// op mutex serializes input handling per session; gen invalidates work
// that was in flight when the session was stopped.
type entry struct {
	sess *Session
	op   sync.Mutex
	gen  uint64
}

// Table owns every session record. All mutation goes through it; reads
// hand out snapshots. At most one live session exists per owner.
type Table struct {
	mu                sync.RWMutex
	byID              map[string]*entry
	byOwner           map[string]string
	transcriptCap     int
	inactivityTimeout time.Duration
	onExpire          func(prev State, s *Session)
}

// NewTable creates a table. transcriptCap bounds the in-memory
// transcript per session; inactivityTimeout of zero disables the
// janitor's expiry.
func NewTable(transcriptCap int, inactivityTimeout time.Duration) *Table {
	if transcriptCap <= 0 {
		transcriptCap = defaultTranscriptCap
	}
	return &Table{
		byID:              make(map[string]*entry),
		byOwner:           make(map[string]string),
		transcriptCap:     transcriptCap,
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook registers a callback for janitor-expired sessions. Call
// before StartJanitor.
func (t *Table) SetExpireHook(hook func(prev State, s *Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = hook
}

// Create registers a new session for owner in StateStarting. An owner
// with a live session gets ErrOwnerBusy.
func (t *Table) Create(owner string) (*Session, error) {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byOwner[owner]; ok {
		if e, exists := t.byID[id]; exists && !e.sess.State.Terminal() {
			return nil, ErrOwnerBusy
		}
	}

	s := &Session{
		ID:             uuid.NewString(),
		Owner:          owner,
		State:          StateStarting,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	t.byID[s.ID] = &entry{sess: s}
	t.byOwner[owner] = s.ID
	return cloneSession(s), nil
}

// Snapshot returns a copy of the session.
func (t *Table) Snapshot(sessionID string) (*Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(e.sess), nil
}

// SnapshotByOwner returns the owner's most recent session, live or not.
func (t *Table) SnapshotByOwner(owner string) (*Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byOwner[owner]
	if !ok {
		return nil, ErrNotFound
	}
	e, ok := t.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(e.sess), nil
}

// LiveByOwner returns the id of the owner's live session.
func (t *Table) LiveByOwner(owner string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byOwner[owner]
	if !ok {
		return "", false
	}
	e, ok := t.byID[id]
	if !ok || e.sess.State.Terminal() {
		return "", false
	}
	return id, true
}

// TryAcquire takes the session's input slot without blocking. It fails
// with ErrBusy when another input is mid-utterance, ErrEnded on a
// terminal session.
func (t *Table) TryAcquire(sessionID string) error {
	t.mu.RLock()
	e, ok := t.byID[sessionID]
	if !ok {
		t.mu.RUnlock()
		return ErrNotFound
	}
	terminal := e.sess.State.Terminal()
	t.mu.RUnlock()

	if terminal {
		return ErrEnded
	}
	if !e.op.TryLock() {
		return ErrBusy
	}
	return nil
}

// Release frees the input slot taken by TryAcquire.
func (t *Table) Release(sessionID string) {
	t.mu.RLock()
	e, ok := t.byID[sessionID]
	t.mu.RUnlock()
	if ok {
		e.op.Unlock()
	}
}

// Generation returns the session's current generation. Work started
// under a generation becomes stale once Stop bumps it.
func (t *Table) Generation(sessionID string) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	return e.gen, nil
}

// SetStateIf transitions the session when gen is still current,
// returning the previous state and whether the transition applied.
func (t *Table) SetStateIf(sessionID string, gen uint64, state State, reason string) (State, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[sessionID]
	if !ok {
		return "", false, ErrNotFound
	}
	if e.gen != gen || e.sess.State.Terminal() {
		return e.sess.State, false, nil
	}
	prev := e.sess.State
	e.sess.State = state
	e.sess.StateReason = reason
	e.sess.LastActivityAt = time.Now().UTC()
	return prev, true, nil
}

// AppendIf appends a transcript entry when gen is still current. The
// transcript is FIFO-bounded at the table's cap.
func (t *Table) AppendIf(sessionID string, gen uint64, te TranscriptEntry) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[sessionID]
	if !ok {
		return false, ErrNotFound
	}
	if e.gen != gen {
		return false, nil
	}
	if te.At.IsZero() {
		te.At = time.Now().UTC()
	}
	e.sess.Transcript = append(e.sess.Transcript, te)
	if over := len(e.sess.Transcript) - t.transcriptCap; over > 0 {
		e.sess.Transcript = e.sess.Transcript[over:]
	}
	e.sess.LastActivityAt = te.At
	return true, nil
}

// Stop forces the session into a terminal state and invalidates any
// in-flight work. Stopping an already terminal session is a no-op.
func (t *Table) Stop(sessionID string, state State, reason string) (prev State, s *Session, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[sessionID]
	if !ok {
		return "", nil, ErrNotFound
	}
	prev = e.sess.State
	if prev.Terminal() {
		return prev, cloneSession(e.sess), nil
	}
	e.gen++
	e.sess.State = state
	e.sess.StateReason = reason
	e.sess.LastActivityAt = time.Now().UTC()
	return prev, cloneSession(e.sess), nil
}

// ActiveCount reports the number of non-terminal sessions.
func (t *Table) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, e := range t.byID {
		if !e.sess.State.Terminal() {
			count++
		}
	}
	return count
}

// StartJanitor expires idle sessions in the background until ctx ends.
func (t *Table) StartJanitor(ctx context.Context, interval time.Duration) {
	if t.inactivityTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.expireIdle()
			}
		}
	}()
}

func (t *Table) expireIdle() {
	now := time.Now().UTC()

	type expired struct {
		prev State
		s    *Session
	}
	var hits []expired

	t.mu.Lock()
	for _, e := range t.byID {
		if e.sess.State.Terminal() {
			continue
		}
		if now.Sub(e.sess.LastActivityAt) < t.inactivityTimeout {
			continue
		}
		prev := e.sess.State
		e.gen++
		e.sess.State = StateStopped
		e.sess.StateReason = "inactivity timeout"
		e.sess.LastActivityAt = now
		hits = append(hits, expired{prev: prev, s: cloneSession(e.sess)})
	}
	hook := t.onExpire
	t.mu.Unlock()

	if hook != nil {
		for _, h := range hits {
			hook(h.prev, h.s)
		}
	}
}

func cloneSession(s *Session) *Session {
	c := *s
	c.Transcript = make([]TranscriptEntry, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return &c
}
