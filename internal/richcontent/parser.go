// Package richcontent extracts typed UI directives embedded in model
// output. The model signals structured content with bracketed tokens
// ([BUTTON: ...], [TABLE: ...], [PLAN: ...]); everything else is plain
// text. Parsing is a single left-to-right pass: each recognized token
// is converted to a directive and removed from the returned text, and
// stripped regions are never re-scanned.
package richcontent

import (
	"encoding/json"
	"strings"
)

// Directive kinds.
const (
	TypeActionButton = "action_button"
	TypeDataTable    = "data_table"
	TypePlanCard     = "plan_card"
)

// Item is one typed directive extracted from a response.
type Item struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ButtonData is the payload of an action_button directive.
type ButtonData struct {
	Label  string          `json:"label"`
	Route  string          `json:"route"`
	Params json.RawMessage `json:"params,omitempty"`
	Style  string          `json:"style"`
}

// TableData is the payload of a data_table directive.
type TableData struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// PlanCardData is the payload of a plan_card directive. Plan cards are
// what the orchestrator persists as durable plans.
type PlanCardData struct {
	PlanType string `json:"type"`
	Name     string `json:"name"`
	Details  string `json:"details"`
}

var tags = []struct {
	prefix string
	kind   string
}{
	{"BUTTON:", TypeActionButton},
	{"TABLE:", TypeDataTable},
	{"PLAN:", TypePlanCard},
}

// Parse scans raw once, left to right, returning the text with all
// recognized tokens removed plus the directives in order of appearance.
// A token whose body is malformed is still stripped from the text but
// produces no directive.
func Parse(raw string) (string, []Item) {
	var out strings.Builder
	out.Grow(len(raw))
	var items []Item

	i := 0
	for i < len(raw) {
		if raw[i] != '[' {
			out.WriteByte(raw[i])
			i++
			continue
		}

		kind, bodyStart := matchTag(raw, i)
		if kind == "" {
			out.WriteByte(raw[i])
			i++
			continue
		}

		end := matchingBracket(raw, i)
		if end < 0 {
			// Unterminated token: leave as plain text.
			out.WriteByte(raw[i])
			i++
			continue
		}

		if item, ok := buildItem(kind, raw[bodyStart:end]); ok {
			items = append(items, item)
		}
		i = end + 1
	}

	return out.String(), items
}

// matchTag reports the directive kind opening at raw[open] and the
// index where the token body starts, or "" if raw[open] does not open
// a recognized tag.
func matchTag(raw string, open int) (string, int) {
	rest := raw[open+1:]
	for _, t := range tags {
		if strings.HasPrefix(rest, t.prefix) {
			return t.kind, open + 1 + len(t.prefix)
		}
	}
	return "", 0
}

// matchingBracket returns the index of the ']' closing the '[' at
// open, counting nested brackets so JSON array params survive, or -1
// if the token never closes.
func matchingBracket(raw string, open int) int {
	depth := 0
	for i := open; i < len(raw); i++ {
		switch raw[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func buildItem(kind, body string) (Item, bool) {
	parts := strings.Split(body, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch kind {
	case TypeActionButton:
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Item{}, false
		}
		data := ButtonData{
			Label: parts[0],
			Route: parts[1],
			Style: "primary",
		}
		if len(parts) >= 3 && parts[2] != "" {
			if json.Valid([]byte(parts[2])) {
				data.Params = json.RawMessage(parts[2])
			}
		}
		return Item{Type: TypeActionButton, Data: data}, true

	case TypeDataTable:
		// Needs at least title, headers, and one row.
		if len(parts) < 3 {
			return Item{}, false
		}
		data := TableData{
			Title:   parts[0],
			Headers: splitCells(parts[1]),
		}
		for _, rowPart := range parts[2:] {
			data.Rows = append(data.Rows, splitCells(rowPart))
		}
		return Item{Type: TypeDataTable, Data: data}, true

	case TypePlanCard:
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Item{}, false
		}
		data := PlanCardData{
			PlanType: parts[0],
			Name:     parts[1],
		}
		if len(parts) >= 3 {
			data.Details = strings.Join(parts[2:], " | ")
		}
		return Item{Type: TypePlanCard, Data: data}, true
	}

	return Item{}, false
}

func splitCells(s string) []string {
	cells := strings.Split(s, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}
