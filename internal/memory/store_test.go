package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/helioform/coachd/internal/richcontent"
	"github.com/helioform/coachd/internal/storage"
)

// fakeStore is an in-memory MessageStore for tests.
type fakeStore struct {
	messages []storage.Message
	plans    []storage.Plan

	failAll    bool
	superseded []string
}

func (f *fakeStore) AppendMessage(m storage.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) RecentMessages(limit int) ([]storage.Message, error) {
	if len(f.messages) <= limit {
		return f.messages, nil
	}
	return f.messages[len(f.messages)-limit:], nil
}

func (f *fakeStore) MessagesByDate(date string) ([]storage.Message, error) {
	var out []storage.Message
	for _, m := range f.messages {
		if m.SessionDate == date {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) AllMessages() ([]storage.Message, error) {
	if f.failAll {
		return nil, errors.New("disk gone")
	}
	return f.messages, nil
}

func (f *fakeStore) SessionDates() ([]string, error) {
	var dates []string
	seen := map[string]bool{}
	for _, m := range f.messages {
		if !seen[m.SessionDate] {
			seen[m.SessionDate] = true
			dates = append(dates, m.SessionDate)
		}
	}
	return dates, nil
}

func (f *fakeStore) SavePlan(p storage.Plan) error {
	f.plans = append(f.plans, p)
	return nil
}

func (f *fakeStore) ActivePlans() ([]storage.Plan, error) {
	var out []storage.Plan
	for _, p := range f.plans {
		if p.Status == storage.PlanActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SupersedePlansOfType(planType string) (int, error) {
	f.superseded = append(f.superseded, planType)
	n := 0
	for i, p := range f.plans {
		if p.Type == planType && p.Status == storage.PlanActive {
			f.plans[i].Status = storage.PlanSuperseded
			n++
		}
	}
	return n, nil
}

func seedMessages(f *fakeStore, date string, contents ...string) {
	for _, c := range contents {
		f.messages = append(f.messages, storage.Message{
			ID:          c,
			SessionDate: date,
			Role:        storage.RoleUser,
			Content:     c,
			CreatedAt:   time.Now(),
		})
	}
}

func TestAddMessageFillsDefaults(t *testing.T) {
	fake := &fakeStore{}
	s := NewStore(fake, true)

	err := s.AddMessage(Message{Role: storage.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if len(fake.messages) != 1 {
		t.Fatalf("got %d messages", len(fake.messages))
	}
	rec := fake.messages[0]
	if rec.ID == "" {
		t.Error("ID not generated")
	}
	if rec.SessionDate != time.Now().Format("2006-01-02") {
		t.Errorf("sessionDate = %q", rec.SessionDate)
	}
}

func TestRecentMessagesCrossesSessionBoundaries(t *testing.T) {
	fake := &fakeStore{}
	seedMessages(fake, "2026-01-05", "a", "b")
	seedMessages(fake, "2026-01-06", "c")
	s := NewStore(fake, true)

	msgs, err := s.RecentMessages(2)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "b" || msgs[1].Content != "c" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestConversationRoundTripsRichContent(t *testing.T) {
	fake := &fakeStore{}
	s := NewStore(fake, true)

	err := s.AddMessage(Message{
		Role:    storage.RoleAssistant,
		Content: "here",
		Rich: []richcontent.Item{
			{Type: richcontent.TypeActionButton, Data: map[string]any{"label": "Go"}},
		},
		Meta:      map[string]any{"confidence": 1.0},
		Timestamp: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	msgs, err := s.Conversation("2026-01-05")
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if len(msgs[0].Rich) != 1 || msgs[0].Rich[0].Type != richcontent.TypeActionButton {
		t.Errorf("rich = %+v", msgs[0].Rich)
	}
	if msgs[0].Meta["confidence"] != 1.0 {
		t.Errorf("meta = %+v", msgs[0].Meta)
	}
}

func TestSearchRanksByScoreThenRecency(t *testing.T) {
	fake := &fakeStore{}
	seedMessages(fake, "2026-01-05", "we talked about protein timing", "and protein shakes")
	seedMessages(fake, "2026-01-10", "protein once")
	seedMessages(fake, "2026-01-12", "nothing relevant here")
	seedMessages(fake, "2026-01-15", "protein again")
	s := NewStore(fake, true)

	matches := s.Search("protein", 10)
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	// Two hits on Jan 5 beat single hits; among single hits the newer
	// session comes first.
	if matches[0].Date != "2026-01-05" {
		t.Errorf("matches[0] = %s", matches[0].Date)
	}
	if matches[1].Date != "2026-01-15" {
		t.Errorf("matches[1] = %s", matches[1].Date)
	}
	if matches[2].Date != "2026-01-10" {
		t.Errorf("matches[2] = %s", matches[2].Date)
	}
}

func TestSearchOnlyMatchingMessagesIncluded(t *testing.T) {
	fake := &fakeStore{}
	seedMessages(fake, "2026-02-01", "creatine dosing question", "unrelated chatter")
	s := NewStore(fake, true)

	matches := s.Search("creatine", 5)
	if len(matches) != 1 {
		t.Fatalf("got %d matches", len(matches))
	}
	if len(matches[0].Messages) != 1 {
		t.Fatalf("got %d messages in group", len(matches[0].Messages))
	}
	if matches[0].Messages[0].Content != "creatine dosing question" {
		t.Errorf("content = %q", matches[0].Messages[0].Content)
	}
}

func TestSearchMultiTermScoring(t *testing.T) {
	fake := &fakeStore{}
	seedMessages(fake, "2026-02-01", "heavy squat session")
	seedMessages(fake, "2026-02-02", "heavy deadlift and squat session")
	s := NewStore(fake, true)

	matches := s.Search("heavy squat deadlift", 5)
	if len(matches) != 2 {
		t.Fatalf("got %d matches", len(matches))
	}
	if matches[0].Date != "2026-02-02" || matches[0].Score != 3 {
		t.Errorf("matches[0] = %s score %d", matches[0].Date, matches[0].Score)
	}
	if matches[1].Score != 2 {
		t.Errorf("matches[1] score = %d", matches[1].Score)
	}
}

func TestSearchDropsShortTerms(t *testing.T) {
	fake := &fakeStore{}
	seedMessages(fake, "2026-02-01", "an ab day it is")
	s := NewStore(fake, true)

	// Every term is under 3 runes, so there is nothing to search for.
	if matches := s.Search("an ab it", 5); matches != nil {
		t.Errorf("matches = %v, want nil", matches)
	}
}

func TestSearchLimit(t *testing.T) {
	fake := &fakeStore{}
	for _, d := range []string{"2026-02-01", "2026-02-02", "2026-02-03"} {
		seedMessages(fake, d, "sleep notes")
	}
	s := NewStore(fake, true)

	matches := s.Search("sleep", 2)
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}

func TestSearchDegradesToEmptyOnStorageFailure(t *testing.T) {
	fake := &fakeStore{failAll: true}
	s := NewStore(fake, true)

	if matches := s.Search("protein", 5); matches != nil {
		t.Errorf("matches = %v, want nil", matches)
	}
}

func TestSavePlanSupersedesSameType(t *testing.T) {
	fake := &fakeStore{}
	s := NewStore(fake, true)

	if err := s.SavePlan(Plan{Type: "meal", Name: "Week 1"}); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := s.SavePlan(Plan{Type: "meal", Name: "Week 2"}); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	active, err := s.ActivePlans()
	if err != nil {
		t.Fatalf("ActivePlans: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active plans, want 1", len(active))
	}
	if active[0].Name != "Week 2" {
		t.Errorf("active plan = %q", active[0].Name)
	}
}

func TestSavePlanWithoutSupersedePolicy(t *testing.T) {
	fake := &fakeStore{}
	s := NewStore(fake, false)

	_ = s.SavePlan(Plan{Type: "meal", Name: "Week 1"})
	_ = s.SavePlan(Plan{Type: "meal", Name: "Week 2"})

	if len(fake.superseded) != 0 {
		t.Errorf("supersede called: %v", fake.superseded)
	}
	active, _ := s.ActivePlans()
	if len(active) != 2 {
		t.Errorf("got %d active plans, want 2", len(active))
	}
}

func TestNeedsRecall(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"Do you remember my squat numbers?", true},
		{"Last time we talked about deloads", true},
		{"What did you say PREVIOUSLY?", true},
		{"How is my plan going?", true},
		{"What should I eat today?", false},
		{"", false},
	}
	for _, c := range cases {
		if got := NeedsRecall(c.message); got != c.want {
			t.Errorf("NeedsRecall(%q) = %v, want %v", c.message, got, c.want)
		}
	}
}
