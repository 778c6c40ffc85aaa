// Package api exposes the coach over the local HTTP API and an MCP
// server. Both surfaces stay thin: all orchestration semantics live in
// the coach package.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helioform/coachd/internal/coach"
	"github.com/helioform/coachd/internal/docs"
	"github.com/helioform/coachd/internal/memory"
	"github.com/helioform/coachd/internal/persona"
	"github.com/helioform/coachd/internal/sources"
	"github.com/helioform/coachd/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Coach    *coach.Orchestrator
	Memory   *memory.Store
	Personas *persona.Registry
	Docs     *docs.Importer
	Plans    PlanStatusStore
	State    *sources.LocalStore
	Token    string
}

// PlanStatusStore is the write access needed for plan invalidation.
// Implemented by storage.Store.
type PlanStatusStore interface {
	SetPlanStatus(id, status string) error
}

// NewHandler builds the router. /health is open; everything else
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/chat", handleChat(deps))
		r.Post("/v1/summarize", handleSummarize(deps))

		r.Get("/v1/plans", handlePlans(deps))
		r.Post("/v1/plans/{id}/invalidate", handleInvalidatePlan(deps))

		r.Post("/v1/memory/search", handleMemorySearch(deps))
		r.Get("/v1/conversations", handleConversationDates(deps))
		r.Get("/v1/conversations/{date}", handleConversation(deps))

		r.Get("/v1/personas", handlePersonas(deps))

		r.Get("/v1/docs", handleListDocs(deps))
		r.Post("/v1/docs", handleImportDoc(deps))

		r.Get("/v1/state", handleGetState(deps))
		r.Put("/v1/state", handlePutState(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Message string `json:"message"`
			Persona string `json:"persona"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		// Chat never fails; degraded turns come back as fallback
		// responses with lowered confidence.
		resp := deps.Coach.Chat(r.Context(), req.Message, req.Persona)
		writeJSON(w, resp)
	}
}

func handleSummarize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date string `json:"date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Date == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "date is required (YYYY-MM-DD)")
			return
		}

		summary, err := deps.Coach.SummarizeDay(r.Context(), req.Date)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "summarization failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"summary": summary})
	}
}

func handlePlans(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := deps.Memory.ActivePlans()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading plans: %v", err)
			return
		}
		if plans == nil {
			plans = []memory.Plan{}
		}
		writeJSON(w, plans)
	}
}

func handleInvalidatePlan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Plans.SetPlanStatus(id, storage.PlanInvalidated); err != nil {
			if err == storage.ErrNotFound {
				httpError(w, http.StatusNotFound, "not_found", "no plan with id %q", id)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "invalidating plan: %v", err)
			return
		}
		writeJSON(w, map[string]string{"id": id, "status": storage.PlanInvalidated})
	}
}

func handleMemorySearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Limit <= 0 {
			req.Limit = 3
		}
		matches := deps.Memory.Search(req.Query, req.Limit)
		if matches == nil {
			matches = []memory.SessionMatch{}
		}
		writeJSON(w, matches)
	}
}

func handleConversationDates(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dates, err := deps.Memory.ConversationDates()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading dates: %v", err)
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, dates)
	}
}

func handleConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		msgs, err := deps.Memory.Conversation(date)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading conversation: %v", err)
			return
		}
		if msgs == nil {
			msgs = []memory.Message{}
		}
		writeJSON(w, msgs)
	}
}

func handlePersonas(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Personas.List())
	}
}

func handleListDocs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Docs.List(50)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing documents: %v", err)
			return
		}
		if list == nil {
			list = []storage.Doc{}
		}
		writeJSON(w, list)
	}
}

func handleImportDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Title   string   `json:"title"`
			Content string   `json:"content"`
			Tags    []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		doc, err := deps.Docs.ImportText(req.Title, req.Content, "api", req.Tags)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "importing document: %v", err)
			return
		}
		writeJSON(w, doc)
	}
}

func handleGetState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := deps.State.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading state: %v", err)
			return
		}
		writeJSON(w, state)
	}
}

func handlePutState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var state sources.State
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.State.Put(state); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "storing state: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "stored"})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
