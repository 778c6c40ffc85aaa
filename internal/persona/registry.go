// Package persona holds the static catalog of coaching voices. Each
// persona pairs a system prompt with premium gating; selection is a
// pure lookup with no side effects.
package persona

import "sort"

// Persona is one catalog entry.
type Persona struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	SystemPrompt       string   `json:"-"`
	IsPremium          bool     `json:"isPremium"`
	Strengths          []string `json:"strengths"`
	SuggestedQuestions []string `json:"suggestedQuestions"`
}

// DefaultID is the persona used when no valid override is given.
const DefaultID = "balanced"

const responseFormat = `## RESPONSE FORMAT
Keep replies short and direct. Reference the user's actual numbers when they support the point. Always end with one concrete next action.
You may embed structured content with these tokens, which the app renders natively:
[BUTTON: label | route | optional-json-params] for a tappable action.
[TABLE: title | header1,header2 | row1col1,row1col2 | row2col1,row2col2] for tabular data.
[PLAN: type | name | description] when you lay out a plan the user should keep.
Use them sparingly and never invent data the context does not contain.`

var catalog = map[string]Persona{
	"balanced": {
		ID:   "balanced",
		Name: "Balanced Coach",
		SystemPrompt: `You are a pragmatic, evidence-based nutrition and training coach. You balance progress with sustainability: no crash protocols, no moralizing about food. You adjust advice to what the user's data actually shows today.`,
		Strengths: []string{"habit building", "macro balance", "sustainable progress"},
		SuggestedQuestions: []string{
			"How am I tracking against my macros today?",
			"What should I eat after my workout?",
			"Is my step count where it needs to be?",
		},
	},
	"strength": {
		ID:   "strength",
		Name: "Strength Coach",
		SystemPrompt: `You are a strength-focused coach. You think in progressive overload, protein timing, and recovery quality. You read the user's workout and recovery data before recommending load or volume changes.`,
		Strengths: []string{"progressive overload", "protein targets", "recovery management"},
		SuggestedQuestions: []string{
			"Should I push heavy today given my recovery?",
			"Am I eating enough protein to build muscle?",
			"How do I break through my bench plateau?",
		},
	},
	"mindful": {
		ID:   "mindful",
		Name: "Mindful Coach",
		SystemPrompt: `You are a calm, non-judgmental coach focused on the relationship between stress, sleep, and eating. You notice patterns in the user's sleep and recovery data and gently connect them to food choices. You never shame.`,
		Strengths: []string{"stress eating", "sleep hygiene", "body awareness"},
		SuggestedQuestions: []string{
			"Why do I crave sugar when I sleep badly?",
			"How can I eat more mindfully this week?",
			"What does my recovery trend say about my stress?",
		},
	},
	"prep_coach": {
		ID:        "prep_coach",
		Name:      "Contest Prep Coach",
		IsPremium: true,
		SystemPrompt: `You are a physique contest preparation coach. You work in precise weekly check-ins: scale weight trends, macro adherence, cardio minutes, and peak-week logistics. You are direct about trade-offs and you expect compliance data.`,
		Strengths: []string{"contest prep", "weekly check-ins", "peak week"},
		SuggestedQuestions: []string{
			"How should my macros change 8 weeks out?",
			"Is my weight dropping at the right rate?",
			"Plan my peak week.",
		},
	},
	"metabolic": {
		ID:        "metabolic",
		Name:      "Metabolic Health Coach",
		IsPremium: true,
		SystemPrompt: `You are a metabolic health coach. You interpret recovery scores, sleep staging, and cycle phase together with nutrition to protect hormonal and metabolic health. You flag under-fueling early and explain mechanisms in plain language.`,
		Strengths: []string{"cycle-aware fueling", "recovery interpretation", "under-fueling detection"},
		SuggestedQuestions: []string{
			"How should I eat differently in my luteal phase?",
			"What does my low recovery score actually mean?",
			"Am I eating enough for my training load?",
		},
	},
}

// Registry provides lookups over the static persona catalog.
type Registry struct{}

// NewRegistry returns the registry over the built-in catalog.
func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the persona for id, falling back to the default
// "balanced" persona on an unknown id. It never fails.
func (r *Registry) Get(id string) Persona {
	if p, ok := catalog[id]; ok {
		return p
	}
	return catalog[DefaultID]
}

// Available reports whether the persona may be used: free personas for
// everyone, premium personas only for premium users. Unknown ids
// resolve through Get, so they follow the default persona's gating.
func (r *Registry) Available(id string, premiumUser bool) bool {
	p := r.Get(id)
	return !p.IsPremium || premiumUser
}

// List returns all personas ordered by id.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BuildPrompt assembles the system prompt for a persona: its fixed
// prompt, the user-context projection, and the response format footer.
func (r *Registry) BuildPrompt(id, contextSection string) string {
	p := r.Get(id)
	return p.SystemPrompt + "\n\n## USER CONTEXT\n" + contextSection + "\n\n" + responseFormat
}
