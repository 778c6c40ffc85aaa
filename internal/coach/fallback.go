package coach

import "strings"

// The fallback responder guarantees the user always receives some
// reply when the backend is unreachable. It pattern-matches the user
// message against fixed keyword categories and returns a canned,
// context-free answer.

type category struct {
	name      string
	keywords  []string
	response  string
	followUps []string
}

var categories = []category{
	{
		name:     "macros",
		keywords: []string{"macro", "calorie", "kcal", "protein", "carb", "fat"},
		response: "I can't reach your live data right now, but as a rule of thumb: anchor each meal around a protein source, keep carbs near your training window, and let fats fill the remainder of your calories. Check your targets in the dashboard and ask me again in a bit.",
		followUps: []string{
			"How do I hit my protein target today?",
			"Should my carbs change on rest days?",
			"What's a good macro split for my goal?",
		},
	},
	{
		name:     "workout",
		keywords: []string{"workout", "train", "exercise", "gym", "lift", "run"},
		response: "I can't see today's training data at the moment. Generally: if you trained hard, prioritize protein and don't skimp on carbs afterwards; if it's a rest day, keep moving lightly and hold your usual targets. Ask me again shortly for advice tied to your actual session.",
		followUps: []string{
			"What should I eat after training?",
			"How hard should I train with low recovery?",
			"Plan my next workout.",
		},
	},
	{
		name:     "sleep",
		keywords: []string{"sleep", "tired", "rest", "recovery", "fatigue"},
		response: "I can't pull your recovery data right now. When sleep is short, expect stronger cravings: front-load protein, keep caffeine before noon, and don't chase the tiredness with extra sugar. Ask again soon and I'll look at your actual numbers.",
		followUps: []string{
			"Why do I crave sugar after bad sleep?",
			"How should I eat on low recovery days?",
			"What improves my deep sleep?",
		},
	},
	{
		name:     "progress",
		keywords: []string{"weight", "progress", "scale", "plateau", "stall"},
		response: "I can't load your trend data at the moment. Remember the scale moves with water, sodium, and cycle phase, so judge progress on the weekly average, not a single morning. Ask me again shortly and we'll look at the real trend together.",
		followUps: []string{
			"Is my weight trend on track?",
			"How do I break a plateau?",
			"What should my weekly rate of loss be?",
		},
	},
	{
		name:     "meals",
		keywords: []string{"meal", "food", "eat", "recipe", "hungry", "snack"},
		response: "I can't see what you've logged today. A safe default: a palm of protein, a fist of vegetables, a cupped hand of carbs, and a thumb of fat. Log the meal and ask me again for advice against your actual totals.",
		followUps: []string{
			"What's a good high-protein snack?",
			"Build me a quick dinner from my macros.",
			"How many meals should I eat a day?",
		},
	},
}

const genericFallback = "I'm having trouble reaching the coaching service right now, so I can't give you an answer grounded in your data. Your message is saved, ask me again in a moment."

var defaultFollowUps = []string{
	"How am I tracking today?",
	"What should my next meal look like?",
	"How does my recovery affect today's targets?",
}

// FallbackResponse returns the canned reply for the message's first
// matching keyword category, or a generic notice when nothing matches.
func FallbackResponse(userMessage string) string {
	lower := strings.ToLower(userMessage)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.response
			}
		}
	}
	return genericFallback
}

// SuggestFollowUps returns up to 3 follow-up questions chosen by the
// same keyword-category matching, falling back to generic suggestions.
func SuggestFollowUps(userMessage string) []string {
	lower := strings.ToLower(userMessage)
	var out []string
	for _, c := range categories {
		matched := false
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, f := range c.followUps {
			if len(out) == 3 {
				return out
			}
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		out = append(out, defaultFollowUps...)
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
