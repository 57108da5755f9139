package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	workdayStartHour = 9
	workdayEndHour   = 18
	minFreeSlot      = time.Hour
)

type GoogleConfig struct {
	// CredentialsFile is the OAuth client secret JSON.
	CredentialsFile string
	// TokenFile holds the user token obtained out of band.
	TokenFile  string
	CalendarID string
	Timezone   string
}

// GoogleService reads the user's Google Calendar. Token refresh is
// handled by the oauth2 transport; a revoked token surfaces as
// ErrUnavailable on the next call.
type GoogleService struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	now        func() time.Time
}

func NewGoogleService(ctx context.Context, cfg GoogleConfig) (*GoogleService, error) {
	credBytes, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(credBytes, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tokBytes, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(tokBytes, tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleService{svc: svc, calendarID: calendarID, loc: loc, now: time.Now}, nil
}

func (g *GoogleService) TodaySchedule(ctx context.Context) (string, error) {
	now := g.now().In(g.loc)
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, g.loc)
	events, err := g.listEvents(ctx, now, endOfDay, 20)
	if err != nil {
		return "", err
	}
	return describeDay("today", events, g.loc), nil
}

func (g *GoogleService) UpcomingEvents(ctx context.Context, days int) (string, error) {
	if days <= 0 {
		days = 7
	}
	now := g.now().In(g.loc)
	events, err := g.listEvents(ctx, now, now.AddDate(0, 0, days), 30)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return fmt.Sprintf("You have nothing scheduled in the next %d days.", days), nil
	}
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		parts = append(parts, describeEventWithDay(ev, g.loc))
	}
	return fmt.Sprintf("Over the next %d days you have: %s.", days, strings.Join(parts, "; ")), nil
}

func (g *GoogleService) NextMeeting(ctx context.Context) (string, error) {
	now := g.now().In(g.loc)
	events, err := g.listEvents(ctx, now, now.AddDate(0, 0, 14), 1)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "You have no upcoming meetings.", nil
	}
	return "Your next meeting is " + describeEventWithDay(events[0], g.loc) + ".", nil
}

func (g *GoogleService) FreeTimeToday(ctx context.Context) (string, error) {
	now := g.now().In(g.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), workdayStartHour, 0, 0, 0, g.loc)
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), workdayEndHour, 0, 0, 0, g.loc)
	events, err := g.listEvents(ctx, dayStart, dayEnd, 20)
	if err != nil {
		return "", err
	}
	return describeFreeSlots(freeSlots(events, dayStart, dayEnd)), nil
}

func (g *GoogleService) listEvents(ctx context.Context, from, to time.Time, max int64) ([]*gcal.Event, error) {
	res, err := g.svc.Events.List(g.calendarID).
		Context(ctx).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(max).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res.Items, nil
}

// interval is a half-open [Start, End) span of the day.
type interval struct {
	Start time.Time
	End   time.Time
}

// freeSlots returns gaps of at least minFreeSlot between events inside
// the working window. All-day events carry no concrete time and are
// skipped.
func freeSlots(events []*gcal.Event, dayStart, dayEnd time.Time) []interval {
	cursor := dayStart
	var slots []interval
	for _, ev := range events {
		start, okStart := eventTime(ev.Start)
		end, okEnd := eventTime(ev.End)
		if !okStart || !okEnd {
			continue
		}
		if start.After(cursor) && start.Sub(cursor) >= minFreeSlot {
			slots = append(slots, interval{Start: cursor, End: start})
		}
		if end.After(cursor) {
			cursor = end
		}
	}
	if dayEnd.After(cursor) && dayEnd.Sub(cursor) >= minFreeSlot {
		slots = append(slots, interval{Start: cursor, End: dayEnd})
	}
	return slots
}

func describeFreeSlots(slots []interval) string {
	if len(slots) == 0 {
		return "You have no free blocks of an hour or more today."
	}
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, fmt.Sprintf("from %s to %s", formatClock(s.Start), formatClock(s.End)))
	}
	return "You are free " + strings.Join(parts, ", and ") + "."
}

func describeDay(label string, events []*gcal.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No events scheduled for " + label + "."
	}
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		parts = append(parts, describeEvent(ev, loc))
	}
	return fmt.Sprintf("You have %d events %s: %s.", len(events), label, strings.Join(parts, "; "))
}

func describeEvent(ev *gcal.Event, loc *time.Location) string {
	title := strings.TrimSpace(ev.Summary)
	if title == "" {
		title = "an untitled event"
	}
	if start, ok := eventTime(ev.Start); ok {
		return fmt.Sprintf("%s at %s", title, formatClock(start.In(loc)))
	}
	return title + " all day"
}

func describeEventWithDay(ev *gcal.Event, loc *time.Location) string {
	title := strings.TrimSpace(ev.Summary)
	if title == "" {
		title = "an untitled event"
	}
	if start, ok := eventTime(ev.Start); ok {
		local := start.In(loc)
		return fmt.Sprintf("%s on %s at %s", title, local.Format("Monday"), formatClock(local))
	}
	if ev.Start != nil && ev.Start.Date != "" {
		if d, err := time.ParseInLocation("2006-01-02", ev.Start.Date, loc); err == nil {
			return fmt.Sprintf("%s on %s, all day", title, d.Format("Monday"))
		}
	}
	return title
}

func eventTime(edt *gcal.EventDateTime) (time.Time, bool) {
	if edt == nil || edt.DateTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatClock(t time.Time) string {
	return strings.TrimPrefix(t.Format("3:04 PM"), "0")
}
