package command

import "strings"

// Kind identifies the fixed set of actions the assistant understands.
type Kind string

const (
	KindEndSession      Kind = "end_session"
	KindScheduleMeeting Kind = "schedule_meeting"
	KindCalendarToday   Kind = "calendar_today"
	KindCalendarNext    Kind = "calendar_next"
	KindCalendarFree    Kind = "calendar_free"
	KindCalendarWeek    Kind = "calendar_week"
	KindReminder        Kind = "reminder"
	KindTimer           Kind = "timer"
	KindWeather         Kind = "weather"
	KindNews            Kind = "news"
	KindJoke            Kind = "joke"
	KindFact            Kind = "fact"
	KindSmallTalk       Kind = "small_talk"
	KindUnrecognized    Kind = "unrecognized"
)

// Action is the result of interpreting one user utterance.
type Action struct {
	Kind Kind
	// Input is the original utterance, preserved for reminder/timer echoes.
	Input string
}

// IsCalendar reports whether the action requires a calendar lookup.
func (a Action) IsCalendar() bool {
	switch a.Kind {
	case KindCalendarToday, KindCalendarNext, KindCalendarFree, KindCalendarWeek:
		return true
	default:
		return false
	}
}

// matcher pairs a keyword set with the action kind it triggers. Order in
// the table is the precedence order; the first match wins and ties are
// resolved by declaration order, never by input length.
type matcher struct {
	kind    Kind
	anyOf   []string
	allOf   []string
	exactly bool
}

var matchers = []matcher{
	// Termination phrases come first so "stop" always ends the session
	// even when the utterance also mentions a calendar word.
	{kind: KindEndSession, anyOf: []string{"goodbye", "end chat", "that's all", "thanks bye", "see you later"}},
	{kind: KindEndSession, anyOf: []string{"stop"}, exactly: true},
	{kind: KindScheduleMeeting, allOf: []string{"schedule", "meeting"}},
	{kind: KindCalendarToday, anyOf: []string{"today's schedule", "my schedule today", "schedule for today", "on my calendar"}},
	{kind: KindCalendarNext, anyOf: []string{"next meeting"}},
	{kind: KindCalendarFree, anyOf: []string{"free time"}},
	{kind: KindCalendarWeek, anyOf: []string{"upcoming events", "this week", "coming up"}},
	{kind: KindReminder, anyOf: []string{"remind me to"}},
	{kind: KindTimer, anyOf: []string{"timer for"}},
	{kind: KindWeather, anyOf: []string{"weather"}},
	{kind: KindNews, anyOf: []string{"news"}},
	{kind: KindJoke, anyOf: []string{"joke"}},
	{kind: KindFact, anyOf: []string{"fact"}},
	{kind: KindSmallTalk, anyOf: []string{"hello", "hi there", "how are you", "thank you"}},
}

// Interpret maps free text onto an Action. It is a pure function: no
// I/O, no state, safe to call from any goroutine. Unrecognized input is
// not an error; it resolves to KindUnrecognized and the session stays
// alive.
func Interpret(text string) Action {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Action{Kind: KindUnrecognized, Input: text}
	}

	for _, m := range matchers {
		if m.matches(lower) {
			return Action{Kind: m.kind, Input: text}
		}
	}
	return Action{Kind: KindUnrecognized, Input: text}
}

func (m matcher) matches(lower string) bool {
	if len(m.allOf) > 0 {
		for _, kw := range m.allOf {
			if !strings.Contains(lower, kw) {
				return false
			}
		}
		return true
	}
	for _, kw := range m.anyOf {
		if m.exactly {
			if lower == kw {
				return true
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Reply returns the canned spoken reply for actions that need no
// external lookup. Calendar actions are answered by the controller via
// the calendar service and return "" here.
func Reply(a Action) string {
	switch a.Kind {
	case KindEndSession:
		return "Goodbye! Have a great day."
	case KindScheduleMeeting:
		return "I can help you schedule a meeting. Tell me who, when, and where."
	case KindReminder:
		return "I'll set a reminder for you: " + strings.TrimSpace(a.Input)
	case KindTimer:
		return "Setting a timer now: " + strings.TrimSpace(a.Input)
	case KindWeather:
		return "I'll get the weather information for you."
	case KindNews:
		return "Let me get the latest news for you."
	case KindJoke:
		return "Why don't scientists trust atoms? Because they make up everything!"
	case KindFact:
		return "Here's an interesting fact: octopuses have three hearts and blue blood."
	case KindSmallTalk:
		return "I'm here to help! You can ask about your schedule, set reminders, or just chat."
	case KindUnrecognized:
		return "I didn't catch that. You can ask about your schedule, weather, news, or reminders."
	default:
		return ""
	}
}
