// Package calendar answers schedule questions with replies phrased for
// speech output rather than raw event dumps.
package calendar

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the upstream calendar cannot be
// reached. Callers turn it into a spoken apology instead of failing the
// whole session.
var ErrUnavailable = errors.New("calendar unavailable")

// Service answers the schedule questions the command interpreter can
// recognize. Implementations return complete sentences ready to be
// synthesized.
type Service interface {
	// TodaySchedule lists today's remaining events.
	TodaySchedule(ctx context.Context) (string, error)
	// UpcomingEvents lists events over the next days.
	UpcomingEvents(ctx context.Context, days int) (string, error)
	// NextMeeting describes the next event from now.
	NextMeeting(ctx context.Context) (string, error)
	// FreeTimeToday lists free slots of at least an hour during working
	// hours today.
	FreeTimeToday(ctx context.Context) (string, error)
}
