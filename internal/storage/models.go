package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Plan statuses.
const (
	PlanActive      = "active"
	PlanSuperseded  = "superseded"
	PlanInvalidated = "invalidated"
)

// Message is one half of a conversation turn, persisted append-only.
// SessionDate groups messages into calendar-day sessions (YYYY-MM-DD).
type Message struct {
	ID          string
	SessionDate string
	Role        string
	Content     string
	RichJSON    string // JSON array of rich content items, "" when none
	MetaJSON    string // JSON object of turn metadata, "" when none
	CreatedAt   time.Time
}

// Plan is a structured artifact the coach produced (workout split,
// meal plan, ...) that stays referenceable across sessions.
type Plan struct {
	ID        string
	Type      string
	Name      string
	Details   string
	Status    string
	CreatedAt time.Time
}

// Turn records one full chat round trip for diagnostics.
type Turn struct {
	ID          string
	CreatedAt   time.Time
	UserMessage string
	Prompt      string
	Response    string
	Persona     string
	DurationMs  int64
	TokensUsed  int
	Confidence  float64
	Fallback    bool
}

// Doc is an imported reference document (meal plan PDF, protocol
// write-up) surfaced alongside conversation memory.
type Doc struct {
	ID        string
	Title     string
	Content   string
	Source    string
	Tags      string // JSON array stored as text
	CreatedAt time.Time
}
