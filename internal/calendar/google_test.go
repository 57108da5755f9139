package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gcal "google.golang.org/api/calendar/v3"
)

func day(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func timedEvent(t *testing.T, summary string, startH, startM, endH, endM int) *gcal.Event {
	t.Helper()
	return &gcal.Event{
		Summary: summary,
		Start:   &gcal.EventDateTime{DateTime: day(t, startH, startM).Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: day(t, endH, endM).Format(time.RFC3339)},
	}
}

func TestFreeSlots(t *testing.T) {
	dayStart := day(t, 9, 0)
	dayEnd := day(t, 18, 0)

	t.Run("empty day is one big slot", func(t *testing.T) {
		slots := freeSlots(nil, dayStart, dayEnd)
		assert.Len(t, slots, 1)
		assert.Equal(t, dayStart, slots[0].Start)
		assert.Equal(t, dayEnd, slots[0].End)
	})

	t.Run("gaps shorter than an hour are ignored", func(t *testing.T) {
		events := []*gcal.Event{
			timedEvent(t, "standup", 9, 0, 10, 0),
			timedEvent(t, "sync", 10, 30, 18, 0),
		}
		slots := freeSlots(events, dayStart, dayEnd)
		assert.Empty(t, slots)
	})

	t.Run("gaps between events and after the last one", func(t *testing.T) {
		events := []*gcal.Event{
			timedEvent(t, "standup", 9, 0, 10, 0),
			timedEvent(t, "review", 12, 0, 13, 0),
		}
		slots := freeSlots(events, dayStart, dayEnd)
		if assert.Len(t, slots, 2) {
			assert.Equal(t, day(t, 10, 0), slots[0].Start)
			assert.Equal(t, day(t, 12, 0), slots[0].End)
			assert.Equal(t, day(t, 13, 0), slots[1].Start)
			assert.Equal(t, dayEnd, slots[1].End)
		}
	})

	t.Run("overlapping events do not rewind the cursor", func(t *testing.T) {
		events := []*gcal.Event{
			timedEvent(t, "workshop", 9, 0, 14, 0),
			timedEvent(t, "sidebar", 10, 0, 11, 0),
		}
		slots := freeSlots(events, dayStart, dayEnd)
		if assert.Len(t, slots, 1) {
			assert.Equal(t, day(t, 14, 0), slots[0].Start)
		}
	})

	t.Run("all day events are skipped", func(t *testing.T) {
		events := []*gcal.Event{
			{Summary: "conference", Start: &gcal.EventDateTime{Date: "2026-03-02"}, End: &gcal.EventDateTime{Date: "2026-03-03"}},
		}
		slots := freeSlots(events, dayStart, dayEnd)
		assert.Len(t, slots, 1)
	})
}

func TestDescribeFreeSlots(t *testing.T) {
	assert.Equal(t, "You have no free blocks of an hour or more today.", describeFreeSlots(nil))

	got := describeFreeSlots([]interval{{Start: day(t, 10, 0), End: day(t, 12, 30)}})
	assert.Equal(t, "You are free from 10:00 AM to 12:30 PM.", got)
}

func TestDescribeDay(t *testing.T) {
	assert.Equal(t, "No events scheduled for today.", describeDay("today", nil, time.UTC))

	events := []*gcal.Event{
		timedEvent(t, "standup", 9, 30, 10, 0),
		timedEvent(t, "", 14, 0, 15, 0),
	}
	got := describeDay("today", events, time.UTC)
	assert.Equal(t, "You have 2 events today: standup at 9:30 AM; an untitled event at 2:00 PM.", got)
}

func TestDescribeEventWithDay(t *testing.T) {
	got := describeEventWithDay(timedEvent(t, "design review", 14, 0, 15, 0), time.UTC)
	assert.Equal(t, "design review on Monday at 2:00 PM", got)

	allDay := &gcal.Event{Summary: "offsite", Start: &gcal.EventDateTime{Date: "2026-03-02"}}
	assert.Equal(t, "offsite on Monday, all day", describeEventWithDay(allDay, time.UTC))
}
