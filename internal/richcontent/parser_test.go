package richcontent

import (
	"reflect"
	"testing"
)

func TestParsePlainTextPassthrough(t *testing.T) {
	in := "Great session today. Keep the protein up!"
	text, items := Parse(in)
	if text != in {
		t.Errorf("text = %q, want %q", text, in)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}

func TestParseButton(t *testing.T) {
	text, items := Parse("Eat this [BUTTON: Log meal | /nutrition/log | [1, 2]] today")

	if text != "Eat this  today" {
		t.Errorf("text = %q", text)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Type != TypeActionButton {
		t.Errorf("type = %q", items[0].Type)
	}
	data, ok := items[0].Data.(ButtonData)
	if !ok {
		t.Fatalf("data is %T", items[0].Data)
	}
	if data.Label != "Log meal" || data.Route != "/nutrition/log" {
		t.Errorf("data = %+v", data)
	}
	if string(data.Params) != "[1, 2]" {
		t.Errorf("params = %q", data.Params)
	}
	if data.Style != "primary" {
		t.Errorf("style = %q", data.Style)
	}
}

func TestParseButtonInvalidParamsDropped(t *testing.T) {
	_, items := Parse("[BUTTON: Go | /home | {not json]")
	// The brace body never closes the bracket pairing cleanly, but the
	// token itself terminates; params that fail json.Valid are dropped.
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	data := items[0].Data.(ButtonData)
	if data.Params != nil {
		t.Errorf("params = %q, want nil", data.Params)
	}
}

func TestParseTable(t *testing.T) {
	text, items := Parse("Here: [TABLE: Macros | Name, Target | Protein, 160 | Carbs, 220]")

	if text != "Here: " {
		t.Errorf("text = %q", text)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	data, ok := items[0].Data.(TableData)
	if !ok {
		t.Fatalf("data is %T", items[0].Data)
	}
	want := TableData{
		Title:   "Macros",
		Headers: []string{"Name", "Target"},
		Rows:    [][]string{{"Protein", "160"}, {"Carbs", "220"}},
	}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("data = %+v, want %+v", data, want)
	}
}

func TestParsePlanCard(t *testing.T) {
	_, items := Parse("[PLAN: meal | High-protein week | 5 meals, 180g protein]")
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	data := items[0].Data.(PlanCardData)
	if data.PlanType != "meal" || data.Name != "High-protein week" {
		t.Errorf("data = %+v", data)
	}
	if data.Details != "5 meals, 180g protein" {
		t.Errorf("details = %q", data.Details)
	}
}

func TestParseMalformedTokenStripped(t *testing.T) {
	// A recognized tag with too few parts is removed from the text but
	// produces no directive.
	text, items := Parse("before [TABLE: just a title] after")
	if text != "before  after" {
		t.Errorf("text = %q", text)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}

func TestParseUnterminatedTokenLeftAsText(t *testing.T) {
	in := "look [BUTTON: Log | /log and then nothing"
	text, items := Parse(in)
	if text != in {
		t.Errorf("text = %q, want %q", text, in)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}

func TestParseUnknownBracketsUntouched(t *testing.T) {
	in := "array[0] and [NOTE: keep this]"
	text, items := Parse(in)
	if text != in {
		t.Errorf("text = %q, want %q", text, in)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}

func TestParseMultipleTokensInOrder(t *testing.T) {
	text, items := Parse("a [BUTTON: One | /1] b [PLAN: meal | Two] c")
	if text != "a  b  c" {
		t.Errorf("text = %q", text)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Type != TypeActionButton || items[1].Type != TypePlanCard {
		t.Errorf("types = %q, %q", items[0].Type, items[1].Type)
	}
}
