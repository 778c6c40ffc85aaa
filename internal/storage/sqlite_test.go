package storage

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func msg(id, date, role, content string, at time.Time) Message {
	return Message{ID: id, SessionDate: date, Role: role, Content: content, CreatedAt: at}
}

func TestMessagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	m := Message{
		ID:          "m1",
		SessionDate: "2026-05-01",
		Role:        RoleUser,
		Content:     "how are my macros?",
		RichJSON:    `[{"type":"action_button"}]`,
		MetaJSON:    `{"persona":"balanced"}`,
		CreatedAt:   at,
	}
	if err := s.AppendMessage(m); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.MessagesByDate("2026-05-01")
	if err != nil {
		t.Fatalf("MessagesByDate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages", len(got))
	}
	if got[0].Content != m.Content || got[0].RichJSON != m.RichJSON || got[0].MetaJSON != m.MetaJSON {
		t.Errorf("got %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(at) {
		t.Errorf("createdAt = %v, want %v", got[0].CreatedAt, at)
	}
}

func TestRecentMessagesAscendingWindow(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"one", "two", "three", "four"} {
		if err := s.AppendMessage(msg(content, "2026-05-01", RoleUser, content, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := s.RecentMessages(2)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages", len(got))
	}
	if got[0].Content != "three" || got[1].Content != "four" {
		t.Errorf("got %q, %q", got[0].Content, got[1].Content)
	}
}

func TestRecentMessagesSameTimestampKeepsInsertOrder(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, content := range []string{"first", "second", "third"} {
		if err := s.AppendMessage(msg(content, "2026-05-01", RoleUser, content, at)); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := s.RecentMessages(10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if got[0].Content != "first" || got[2].Content != "third" {
		t.Errorf("order = %q, %q, %q", got[0].Content, got[1].Content, got[2].Content)
	}
}

func TestSessionDates(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	_ = s.AppendMessage(msg("a", "2026-05-02", RoleUser, "a", at))
	_ = s.AppendMessage(msg("b", "2026-05-01", RoleUser, "b", at.Add(-24*time.Hour)))
	_ = s.AppendMessage(msg("c", "2026-05-02", RoleAssistant, "c", at))

	dates, err := s.SessionDates()
	if err != nil {
		t.Fatalf("SessionDates: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-05-01" || dates[1] != "2026-05-02" {
		t.Errorf("dates = %v", dates)
	}
}

func TestPlanLifecycle(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	if err := s.SavePlan(Plan{ID: "p1", Type: "meal", Name: "Week 1", CreatedAt: base}); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := s.SavePlan(Plan{ID: "p2", Type: "workout", Name: "Push/pull", CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	active, err := s.ActivePlans()
	if err != nil {
		t.Fatalf("ActivePlans: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active plans", len(active))
	}
	// Newest first.
	if active[0].ID != "p2" {
		t.Errorf("active[0] = %s", active[0].ID)
	}

	n, err := s.SupersedePlansOfType("meal")
	if err != nil {
		t.Fatalf("SupersedePlansOfType: %v", err)
	}
	if n != 1 {
		t.Errorf("superseded %d plans, want 1", n)
	}

	if err := s.SetPlanStatus("p2", PlanInvalidated); err != nil {
		t.Fatalf("SetPlanStatus: %v", err)
	}

	active, _ = s.ActivePlans()
	if len(active) != 0 {
		t.Errorf("got %d active plans after lifecycle, want 0", len(active))
	}
}

func TestSetPlanStatusUnknownID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetPlanStatus("missing", PlanInvalidated); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTurnsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	turn := Turn{
		ID:          "t1",
		CreatedAt:   at,
		UserMessage: "hello",
		Prompt:      "system...",
		Response:    "hi",
		Persona:     "balanced",
		DurationMs:  840,
		TokensUsed:  120,
		Confidence:  1.0,
	}
	if err := s.SaveTurn(turn); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	_ = s.SaveTurn(Turn{ID: "t2", CreatedAt: at.Add(time.Minute), Fallback: true, Confidence: 0.7})

	got, err := s.RecentTurns(5)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d turns", len(got))
	}
	if got[0].ID != "t2" || !got[0].Fallback {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].DurationMs != 840 || got[1].TokensUsed != 120 || got[1].Confidence != 1.0 {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestDocsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	d := Doc{ID: "d1", Title: "Cut plan", Content: "eat less", Source: "api", Tags: `["nutrition"]`, CreatedAt: at}
	if err := s.SaveDoc(d); err != nil {
		t.Fatalf("SaveDoc: %v", err)
	}

	got, err := s.GetDoc("d1")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if got.Title != "Cut plan" || got.Tags != `["nutrition"]` {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetDoc("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	list, err := s.ListDocs(10)
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d docs", len(list))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
