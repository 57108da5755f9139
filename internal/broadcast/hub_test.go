package broadcast

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmorelli/aria/internal/protocol"
)

func TestPublishDeliversToOwnerOnly(t *testing.T) {
	h := NewHub(4, zerolog.Nop())
	got, cancel := h.Subscribe("gm")
	defer cancel()
	other, cancelOther := h.Subscribe("someone-else")
	defer cancelOther()

	h.Publish("gm", protocol.Event{Type: protocol.EventLog, SessionID: "s1", Text: "hi"})

	ev := <-got
	assert.Equal(t, "hi", ev.Text)
	assert.Equal(t, uint64(1), ev.Seq)
	assert.False(t, ev.At.IsZero())
	assert.Empty(t, other, "cross-owner delivery")
}

func TestPublishNeverBlocksAndDropsOldest(t *testing.T) {
	drops := 0
	h := NewHub(2, zerolog.Nop())
	h.SetDropHandler(func(string) { drops++ })

	ch, cancel := h.Subscribe("gm")
	defer cancel()

	for i := 1; i <= 5; i++ {
		h.Publish("gm", protocol.Event{Type: protocol.EventLog, SessionID: "s1", Text: fmt.Sprintf("m%d", i)})
	}

	// Buffer holds 2; the three oldest were shed.
	assert.Equal(t, 3, drops)
	assert.Equal(t, "m4", (<-ch).Text)
	assert.Equal(t, "m5", (<-ch).Text)
	assert.Empty(t, ch)
}

func TestSequencePerSession(t *testing.T) {
	h := NewHub(8, zerolog.Nop())
	ch, cancel := h.Subscribe("gm")
	defer cancel()

	h.Publish("gm", protocol.Event{SessionID: "a"})
	h.Publish("gm", protocol.Event{SessionID: "b"})
	h.Publish("gm", protocol.Event{SessionID: "a"})

	assert.Equal(t, uint64(1), (<-ch).Seq)
	assert.Equal(t, uint64(1), (<-ch).Seq)
	assert.Equal(t, uint64(2), (<-ch).Seq)

	h.Forget("a")
	h.Publish("gm", protocol.Event{SessionID: "a"})
	assert.Equal(t, uint64(1), (<-ch).Seq, "sequence restarts after forget")
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	h := NewHub(8, zerolog.Nop())
	h.Publish("gm", protocol.Event{SessionID: "s1", Text: "before"})

	ch, cancel := h.Subscribe("gm")
	defer cancel()
	assert.Empty(t, ch)

	h.Publish("gm", protocol.Event{SessionID: "s1", Text: "after"})
	assert.Equal(t, "after", (<-ch).Text)
}

func TestCancelClosesChannelAndIsIdempotent(t *testing.T) {
	h := NewHub(8, zerolog.Nop())
	ch, cancel := h.Subscribe("gm")

	cancel()
	cancel()

	_, open := <-ch
	require.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount("gm"))

	// Publishing after cancel must not panic on the closed channel.
	h.Publish("gm", protocol.Event{SessionID: "s1"})
}
