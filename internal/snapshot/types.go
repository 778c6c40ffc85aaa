// Package snapshot assembles a per-turn, immutable view of the user's
// current state from the app's external read stores. A missing or
// failing source degrades to its neutral default so a coaching turn
// can always proceed.
package snapshot

import "time"

// SleepQuality is the normalized sleep rating from the health store.
type SleepQuality string

const (
	SleepUnknown SleepQuality = ""
	SleepPoor    SleepQuality = "poor"
	SleepFair    SleepQuality = "fair"
	SleepGood    SleepQuality = "good"
)

// Profile identifies the user.
type Profile struct {
	Name     string  `json:"name"`
	AgeYears int     `json:"ageYears"`
	WeightKg float64 `json:"weightKg"`
}

// Goals holds the user's daily targets.
type Goals struct {
	DailyCalories int `json:"dailyCalories"`
	ProteinG      int `json:"proteinG"`
	CarbsG        int `json:"carbsG"`
	FatG          int `json:"fatG"`
	DailySteps    int `json:"dailySteps"`
}

// Nutrition is what the user has logged as consumed today.
type Nutrition struct {
	Calories    int `json:"calories"`
	ProteinG    int `json:"proteinG"`
	CarbsG      int `json:"carbsG"`
	FatG        int `json:"fatG"`
	MealsLogged int `json:"mealsLogged"`
}

// Workout is one logged training session.
type Workout struct {
	Name           string `json:"name"`
	DurationMin    int    `json:"durationMin"`
	CaloriesBurned int    `json:"caloriesBurned"`
}

// Activity is today's movement data.
type Activity struct {
	Steps    int       `json:"steps"`
	Workouts []Workout `json:"workouts,omitempty"`
}

// Health holds wearable-derived recovery signals. A nil *Health on the
// snapshot means no health source was available this turn.
type Health struct {
	Sleep    SleepQuality `json:"sleep"`
	Recovery int          `json:"recovery"` // 0-100
}

// Cycle is the user's menstrual-cycle state, when tracked.
type Cycle struct {
	Phase string `json:"phase"`
	Day   int    `json:"day"`
}

// Protocol is an active supplementation protocol the user disclosed.
type Protocol struct {
	Name  string `json:"name"`
	Phase string `json:"phase,omitempty"`
}

// UserContext is the immutable per-turn snapshot. It is built fresh by
// Builder.Build each turn and discarded afterwards.
type UserContext struct {
	Profile    Profile
	Goals      Goals
	Nutrition  Nutrition
	Activity   Activity
	Health     *Health
	Cycle      *Cycle
	Protocols  []Protocol
	Wearables  []string // connected provider ids
	CapturedAt time.Time
}

// Context areas reported in turn metadata when non-default.
const (
	AreaNutrition = "nutrition"
	AreaWorkouts  = "workouts"
	AreaSleep     = "sleep"
	AreaCycle     = "cycle"
	AreaPeptides  = "peptides"
	AreaWearables = "wearables"
)

// PopulatedAreas lists the context areas that carried non-default data
// this turn, in a fixed order.
func (uc UserContext) PopulatedAreas() []string {
	var areas []string
	if uc.Nutrition != (Nutrition{}) {
		areas = append(areas, AreaNutrition)
	}
	if len(uc.Activity.Workouts) > 0 {
		areas = append(areas, AreaWorkouts)
	}
	if uc.Health != nil && uc.Health.Sleep != SleepUnknown {
		areas = append(areas, AreaSleep)
	}
	if uc.Cycle != nil {
		areas = append(areas, AreaCycle)
	}
	if len(uc.Protocols) > 0 {
		areas = append(areas, AreaPeptides)
	}
	if len(uc.Wearables) > 0 {
		areas = append(areas, AreaWearables)
	}
	return areas
}
