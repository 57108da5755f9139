package calendar

import "context"

// MockService serves canned answers. It backs dev mode when no Google
// credentials are configured, and tests.
type MockService struct {
	TodayReply    string
	UpcomingReply string
	NextReply     string
	FreeReply     string
	Err           error

	Calls int
}

func NewMockService() *MockService {
	return &MockService{
		TodayReply:    "You have 2 events today: standup at 9:30 AM; design review at 2:00 PM.",
		UpcomingReply: "Over the next 7 days you have: standup on Monday at 9:30 AM.",
		NextReply:     "Your next meeting is standup on Monday at 9:30 AM.",
		FreeReply:     "You are free from 10:00 AM to 2:00 PM.",
	}
}

func (m *MockService) TodaySchedule(context.Context) (string, error) {
	m.Calls++
	return m.TodayReply, m.Err
}

func (m *MockService) UpcomingEvents(context.Context, int) (string, error) {
	m.Calls++
	return m.UpcomingReply, m.Err
}

func (m *MockService) NextMeeting(context.Context) (string, error) {
	m.Calls++
	return m.NextReply, m.Err
}

func (m *MockService) FreeTimeToday(context.Context) (string, error) {
	m.Calls++
	return m.FreeReply, m.Err
}
