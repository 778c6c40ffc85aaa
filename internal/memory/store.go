// Package memory is the coach's durable conversation memory: an
// append-only message log grouped into date-keyed sessions, plus the
// plans the coach has produced. Raw persistence lives in storage; this
// package owns relevance scoring and the recall trigger heuristics.
// Memory augmentation is an enhancement, not a requirement, so reads
// degrade to empty results instead of failing a turn.
package memory

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helioform/coachd/internal/richcontent"
	"github.com/helioform/coachd/internal/storage"
)

// MessageStore is the slice of storage.Store this package needs.
type MessageStore interface {
	AppendMessage(storage.Message) error
	RecentMessages(limit int) ([]storage.Message, error)
	MessagesByDate(date string) ([]storage.Message, error)
	AllMessages() ([]storage.Message, error)
	SessionDates() ([]string, error)
	SavePlan(storage.Plan) error
	ActivePlans() ([]storage.Plan, error)
	SupersedePlansOfType(planType string) (int, error)
}

// Message is one conversation turn half with parsed rich content.
type Message struct {
	ID        string             `json:"id"`
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	Rich      []richcontent.Item `json:"richContent,omitempty"`
	Meta      map[string]any     `json:"metadata,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Plan is a durable structured artifact extracted from a response.
type Plan struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Details   string    `json:"details"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdDate"`
}

// SessionMatch is one scored group returned by Search.
type SessionMatch struct {
	Date     string    `json:"date"`
	Messages []Message `json:"relevantMessages"`
	Score    int       `json:"-"`
}

// Store provides memory operations over a MessageStore.
type Store struct {
	store     MessageStore
	supersede bool
	logger    *slog.Logger
}

// NewStore creates a memory store. When supersede is true, saving a
// plan marks older active plans of the same type superseded.
func NewStore(store MessageStore, supersede bool) *Store {
	return &Store{store: store, supersede: supersede, logger: slog.Default()}
}

// AddMessage persists one message into today's (or the message's own
// dated) session.
func (s *Store) AddMessage(m Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	rec := storage.Message{
		ID:          m.ID,
		SessionDate: m.Timestamp.Format("2006-01-02"),
		Role:        m.Role,
		Content:     m.Content,
		CreatedAt:   m.Timestamp,
	}
	if len(m.Rich) > 0 {
		b, err := json.Marshal(m.Rich)
		if err == nil {
			rec.RichJSON = string(b)
		} else {
			s.logger.Warn("marshalling rich content", "error", err)
		}
	}
	if len(m.Meta) > 0 {
		b, err := json.Marshal(m.Meta)
		if err == nil {
			rec.MetaJSON = string(b)
		} else {
			s.logger.Warn("marshalling message metadata", "error", err)
		}
	}
	return s.store.AppendMessage(rec)
}

// RecentMessages returns the last n messages across the whole history,
// ascending, independent of session boundaries.
func (s *Store) RecentMessages(n int) ([]Message, error) {
	recs, err := s.store.RecentMessages(n)
	if err != nil {
		return nil, err
	}
	return fromRecords(recs), nil
}

// Conversation returns the full session for one date (YYYY-MM-DD).
func (s *Store) Conversation(date string) ([]Message, error) {
	recs, err := s.store.MessagesByDate(date)
	if err != nil {
		return nil, err
	}
	return fromRecords(recs), nil
}

// ConversationDates returns the distinct session dates, ascending.
func (s *Store) ConversationDates() ([]string, error) {
	return s.store.SessionDates()
}

// Search scores whole sessions against the query and returns up to
// limit groups: score descending, ties broken by recency descending,
// zero-score sessions omitted. Scoring counts, per message, how many
// query terms (lowercased, whitespace-split, terms shorter than 3
// runes discarded) appear as substrings of the content. On storage
// failure Search logs and returns an empty result.
func (s *Store) Search(query string, limit int) []SessionMatch {
	terms := searchTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	recs, err := s.store.AllMessages()
	if err != nil {
		s.logger.Warn("memory search degraded to empty", "error", err)
		return nil
	}

	type bucket struct {
		date     string
		score    int
		messages []Message
	}
	byDate := make(map[string]*bucket)
	var order []string

	for _, rec := range recs {
		b := byDate[rec.SessionDate]
		if b == nil {
			b = &bucket{date: rec.SessionDate}
			byDate[rec.SessionDate] = b
			order = append(order, rec.SessionDate)
		}
		content := strings.ToLower(rec.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				hits++
			}
		}
		if hits > 0 {
			b.score += hits
			b.messages = append(b.messages, fromRecord(rec))
		}
	}

	var matched []*bucket
	for _, date := range order {
		if b := byDate[date]; b.score > 0 {
			matched = append(matched, b)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].date > matched[j].date
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]SessionMatch, len(matched))
	for i, b := range matched {
		out[i] = SessionMatch{Date: b.date, Messages: b.messages, Score: b.score}
	}
	return out
}

// SavePlan persists a plan, applying the supersede policy when enabled.
func (s *Store) SavePlan(p Plan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if s.supersede {
		if n, err := s.store.SupersedePlansOfType(p.Type); err != nil {
			s.logger.Warn("superseding plans failed", "type", p.Type, "error", err)
		} else if n > 0 {
			s.logger.Info("superseded plans", "type", p.Type, "count", n)
		}
	}
	return s.store.SavePlan(storage.Plan{
		ID:        p.ID,
		Type:      p.Type,
		Name:      p.Name,
		Details:   p.Details,
		Status:    storage.PlanActive,
		CreatedAt: p.CreatedAt,
	})
}

// ActivePlans returns the currently active plans, newest first.
func (s *Store) ActivePlans() ([]Plan, error) {
	recs, err := s.store.ActivePlans()
	if err != nil {
		return nil, err
	}
	out := make([]Plan, len(recs))
	for i, r := range recs {
		out[i] = Plan{
			ID:        r.ID,
			Type:      r.Type,
			Name:      r.Name,
			Details:   r.Details,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

func searchTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(f)) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func fromRecords(recs []storage.Message) []Message {
	out := make([]Message, len(recs))
	for i, r := range recs {
		out[i] = fromRecord(r)
	}
	return out
}

func fromRecord(r storage.Message) Message {
	m := Message{
		ID:        r.ID,
		Role:      r.Role,
		Content:   r.Content,
		Timestamp: r.CreatedAt,
	}
	if r.RichJSON != "" {
		if err := json.Unmarshal([]byte(r.RichJSON), &m.Rich); err != nil {
			slog.Warn("unmarshalling rich content", "id", r.ID, "error", err)
		}
	}
	if r.MetaJSON != "" {
		if err := json.Unmarshal([]byte(r.MetaJSON), &m.Meta); err != nil {
			slog.Warn("unmarshalling message metadata", "id", r.ID, "error", err)
		}
	}
	return m
}
