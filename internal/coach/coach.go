// Package coach is the turn orchestrator: it sequences context
// aggregation, memory recall, macro adjustment, prompt assembly, the
// model call, and write-back for every user message. Errors inside a
// turn are data, never panics: Chat always returns a usable Response.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helioform/coachd/internal/backend"
	"github.com/helioform/coachd/internal/macros"
	"github.com/helioform/coachd/internal/memory"
	"github.com/helioform/coachd/internal/persona"
	"github.com/helioform/coachd/internal/richcontent"
	"github.com/helioform/coachd/internal/snapshot"
	"github.com/helioform/coachd/internal/storage"
)

const (
	memorySearchLimit  = 3
	historyWindow      = 10
	defaultMaxTokens   = 1024
	confidenceFull     = 1.0
	confidenceFallback = 0.7

	apologyText = "I'm having trouble putting together a proper answer right now. Give me a moment and ask again; your message is saved and nothing is lost."
)

// Backend abstracts the generative model service.
type Backend interface {
	Invoke(ctx context.Context, prompt string, maxTokens int) (backend.Completion, error)
}

// TurnLog records completed turns for diagnostics. Implemented by
// storage.Store; may be nil.
type TurnLog interface {
	SaveTurn(storage.Turn) error
}

// Metadata describes how a response was produced.
type Metadata struct {
	TurnID       string   `json:"turnId"`
	Persona      string   `json:"persona"`
	ProcessingMs int64    `json:"processingMs"`
	TokensUsed   int      `json:"tokensUsed,omitempty"`
	Confidence   float64  `json:"confidence"`
	ContextAreas []string `json:"contextAreas,omitempty"`
	Fallback     bool     `json:"fallback,omitempty"`
	MemoryUsed   bool     `json:"memoryUsed,omitempty"`
}

// Response is what every Chat call returns, no matter what failed
// underneath.
type Response struct {
	Text        string             `json:"text"`
	RichContent []richcontent.Item `json:"richContent,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Adjustment  *macros.Adjustment `json:"macroAdjustment,omitempty"`
	Metadata    Metadata           `json:"metadata"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Orchestrator coordinates one conversational turn at a time. Callers
// are expected to serialize turns for a single user; there is no
// internal queuing.
type Orchestrator struct {
	snapshots *snapshot.Builder
	memory    *memory.Store
	personas  *persona.Registry
	backend   Backend
	turns     TurnLog

	defaultPersona string
	premiumUser    bool
	maxTokens      int
	clock          Clock
	logger         *slog.Logger
}

// Config wires an Orchestrator.
type Config struct {
	Snapshots      *snapshot.Builder
	Memory         *memory.Store
	Personas       *persona.Registry
	Backend        Backend
	Turns          TurnLog // optional
	DefaultPersona string  // used when a turn names no persona; empty means "balanced"
	PremiumUser    bool
	MaxTokens      int // <=0 uses the default
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Orchestrator{
		snapshots:      cfg.Snapshots,
		memory:         cfg.Memory,
		personas:       cfg.Personas,
		backend:        cfg.Backend,
		turns:          cfg.Turns,
		defaultPersona: cfg.DefaultPersona,
		premiumUser:    cfg.PremiumUser,
		maxTokens:      maxTokens,
		clock:          realClock{},
		logger:         slog.Default(),
	}
}

// WithClock overrides the orchestrator's clock (for testing).
func (o *Orchestrator) WithClock(c Clock) *Orchestrator {
	o.clock = c
	return o
}

// Chat runs one full turn. personaID may be empty for the default
// persona; a premium persona requested by a non-premium user silently
// falls back to the default. Chat never returns an error: the worst
// case is a fixed apologetic response with confidence 0.
func (o *Orchestrator) Chat(ctx context.Context, userMessage, personaID string) (resp Response) {
	start := o.clock.Now()
	turnID := uuid.NewString()

	// Persist the user's message first so a crash later in the turn
	// never loses their input.
	userMsg := memory.Message{
		ID:        uuid.NewString(),
		Role:      storage.RoleUser,
		Content:   userMessage,
		Timestamp: start,
	}
	if err := o.memory.AddMessage(userMsg); err != nil {
		o.logger.Warn("persisting user message failed", "error", err)
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn pipeline panicked", "turn_id", turnID, "panic", r)
			resp = Response{
				Text: apologyText,
				Metadata: Metadata{
					TurnID:       turnID,
					Persona:      o.resolvePersona(personaID),
					ProcessingMs: o.clock.Now().Sub(start).Milliseconds(),
					Confidence:   0,
				},
			}
		}
	}()

	resp = o.runTurn(ctx, turnID, userMessage, personaID, userMsg.ID, start)
	return resp
}

func (o *Orchestrator) runTurn(ctx context.Context, turnID, userMessage, personaID, userMsgID string, start time.Time) Response {
	personaUsed := o.resolvePersona(personaID)

	// Build the per-turn snapshot. Never fails; degraded sources show
	// up as defaults.
	uc := o.snapshots.Build(ctx)
	areas := uc.PopulatedAreas()

	// Search memory only when the message points at past conversations.
	var matches []memory.SessionMatch
	if memory.NeedsRecall(userMessage) {
		matches = o.memory.Search(userMessage, memorySearchLimit)
	}

	plans, err := o.memory.ActivePlans()
	if err != nil {
		o.logger.Warn("loading active plans failed", "error", err)
		plans = nil
	}

	adj := macros.Compute(uc)

	history := o.sameDayHistory(start, userMsgID)

	prompt := o.assemblePrompt(personaUsed, uc, matches, plans, adj, history, userMessage)

	// Call the model. Any failure, including an empty payload, lands
	// on the deterministic fallback responder.
	text := ""
	tokens := 0
	confidence := confidenceFull
	fallback := false
	comp, err := o.backend.Invoke(ctx, prompt, o.maxTokens)
	if err != nil {
		o.logger.Warn("backend call failed, using fallback responder", "turn_id", turnID, "error", err)
		text = FallbackResponse(userMessage)
		confidence = confidenceFallback
		fallback = true
	} else {
		text = comp.Text
		tokens = comp.TokensUsed
	}

	cleaned, items := richcontent.Parse(text)

	meta := Metadata{
		TurnID:       turnID,
		Persona:      personaUsed,
		ProcessingMs: o.clock.Now().Sub(start).Milliseconds(),
		TokensUsed:   tokens,
		Confidence:   confidence,
		ContextAreas: areas,
		Fallback:     fallback,
		MemoryUsed:   len(matches) > 0,
	}

	// Persist the assistant message with its rich content and metadata.
	assistantMeta := map[string]any{
		"turnId":       meta.TurnID,
		"persona":      meta.Persona,
		"processingMs": meta.ProcessingMs,
		"confidence":   meta.Confidence,
	}
	if tokens > 0 {
		assistantMeta["tokensUsed"] = tokens
	}
	if len(areas) > 0 {
		assistantMeta["contextAreas"] = areas
	}
	if err := o.memory.AddMessage(memory.Message{
		Role:      storage.RoleAssistant,
		Content:   cleaned,
		Rich:      items,
		Meta:      assistantMeta,
		Timestamp: o.clock.Now(),
	}); err != nil {
		o.logger.Warn("persisting assistant message failed", "error", err)
	}

	// Persist any plan cards the response produced.
	for _, item := range items {
		card, ok := item.Data.(richcontent.PlanCardData)
		if !ok {
			continue
		}
		plan := memory.Plan{
			Type:      card.PlanType,
			Name:      card.Name,
			Details:   card.Details,
			CreatedAt: o.clock.Now(),
		}
		if err := o.memory.SavePlan(plan); err != nil {
			o.logger.Warn("saving plan failed", "type", card.PlanType, "error", err)
		} else {
			o.logger.Info("plan saved", "type", card.PlanType, "name", card.Name)
		}
	}

	o.recordTurn(turnID, userMessage, prompt, cleaned, meta, start)

	return Response{
		Text:        cleaned,
		RichContent: items,
		Suggestions: SuggestFollowUps(userMessage),
		Adjustment:  adj,
		Metadata:    meta,
	}
}

// SummarizeDay condenses one session through the backend and stores
// the summary as a system message for later recall.
func (o *Orchestrator) SummarizeDay(ctx context.Context, date string) (string, error) {
	msgs, err := o.memory.Conversation(date)
	if err != nil {
		return "", fmt.Errorf("loading conversation for %s: %w", date, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("no conversation on %s", date)
	}

	prompt := summaryPrompt(date, msgs)
	comp, err := o.backend.Invoke(ctx, prompt, o.maxTokens)
	if err != nil {
		return "", fmt.Errorf("summarizing %s: %w", date, err)
	}

	summary := fmt.Sprintf("Summary of %s: %s", date, comp.Text)
	if err := o.memory.AddMessage(memory.Message{
		Role:      storage.RoleSystem,
		Content:   summary,
		Timestamp: o.clock.Now(),
	}); err != nil {
		o.logger.Warn("persisting day summary failed", "date", date, "error", err)
	}
	return summary, nil
}

// resolvePersona applies premium gating: a premium persona is never
// invoked for a non-premium user.
func (o *Orchestrator) resolvePersona(personaID string) string {
	if personaID == "" {
		personaID = o.defaultPersona
	}
	if personaID == "" {
		personaID = persona.DefaultID
	}
	if !o.personas.Available(personaID, o.premiumUser) {
		o.logger.Info("premium persona unavailable, using default", "requested", personaID)
		return persona.DefaultID
	}
	return o.personas.Get(personaID).ID
}

// sameDayHistory returns today's conversation minus the message that
// was just persisted for this turn.
func (o *Orchestrator) sameDayHistory(start time.Time, excludeID string) []memory.Message {
	today := start.Format("2006-01-02")
	msgs, err := o.memory.Conversation(today)
	if err != nil {
		o.logger.Warn("loading same-day history failed", "error", err)
		return nil
	}
	filtered := msgs[:0]
	for _, m := range msgs {
		if m.ID != excludeID {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) > historyWindow {
		filtered = filtered[len(filtered)-historyWindow:]
	}
	return filtered
}

func (o *Orchestrator) recordTurn(turnID, userMessage, prompt, response string, meta Metadata, start time.Time) {
	if o.turns == nil {
		return
	}
	err := o.turns.SaveTurn(storage.Turn{
		ID:          turnID,
		CreatedAt:   start,
		UserMessage: userMessage,
		Prompt:      prompt,
		Response:    response,
		Persona:     meta.Persona,
		DurationMs:  meta.ProcessingMs,
		TokensUsed:  meta.TokensUsed,
		Confidence:  meta.Confidence,
		Fallback:    meta.Fallback,
	})
	if err != nil {
		o.logger.Warn("recording turn failed", "turn_id", turnID, "error", err)
	}
}
