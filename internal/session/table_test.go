package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCreateEnforcesOneLiveSessionPerOwner(t *testing.T) {
	tb := NewTable(0, 0)

	s, err := tb.Create("gm")
	require.NoError(t, err)
	assert.Equal(t, StateStarting, s.State)

	_, err = tb.Create("gm")
	assert.ErrorIs(t, err, ErrOwnerBusy)

	_, other := tb.Create("someone-else")
	assert.NoError(t, other)
}

func TestTableStaleGenerationMutationsNoOp(t *testing.T) {
	tb := NewTable(0, 0)
	s, err := tb.Create("gm")
	require.NoError(t, err)

	gen, err := tb.Generation(s.ID)
	require.NoError(t, err)

	_, stopped, err := tb.Stop(s.ID, StateStopped, "test")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, stopped.State)

	_, applied, err := tb.SetStateIf(s.ID, gen, StateListening, "")
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = tb.AppendIf(s.ID, gen, TranscriptEntry{Role: RoleAssistant, Text: "late"})
	require.NoError(t, err)
	assert.False(t, applied)

	snap, err := tb.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Transcript)
}

func TestTableSnapshotIsACopy(t *testing.T) {
	tb := NewTable(0, 0)
	s, err := tb.Create("gm")
	require.NoError(t, err)
	gen, err := tb.Generation(s.ID)
	require.NoError(t, err)

	_, err = tb.AppendIf(s.ID, gen, TranscriptEntry{Role: RoleUser, Text: "original"})
	require.NoError(t, err)

	snap, err := tb.Snapshot(s.ID)
	require.NoError(t, err)
	snap.Transcript[0].Text = "mutated"
	snap.State = StateError

	fresh, err := tb.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Transcript[0].Text)
	assert.Equal(t, StateStarting, fresh.State)
}

func TestJanitorExpiresIdleSessions(t *testing.T) {
	tb := NewTable(0, 30*time.Millisecond)
	s, err := tb.Create("gm")
	require.NoError(t, err)

	var mu sync.Mutex
	var expiredID string
	var prevState State
	tb.SetExpireHook(func(prev State, es *Session) {
		mu.Lock()
		defer mu.Unlock()
		expiredID = es.ID
		prevState = prev
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tb.StartJanitor(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return expiredID == s.ID
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, StateStarting, prevState)
	mu.Unlock()

	snap, err := tb.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, "inactivity timeout", snap.StateReason)
	assert.Equal(t, 0, tb.ActiveCount())
}

func TestJanitorDisabledWhenNoTimeout(t *testing.T) {
	tb := NewTable(0, 0)
	_, err := tb.Create("gm")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tb.StartJanitor(ctx, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, tb.ActiveCount())
}
