// Package macros derives macro-nutrient target adjustments from the
// user's live activity and recovery signals. Compute is pure: the same
// snapshot always yields the same adjustment, and no I/O happens here.
package macros

import (
	"fmt"
	"math"
	"strings"

	"github.com/helioform/coachd/internal/snapshot"
)

// Adjustment is a per-day macro target recommendation. It is computed
// fresh every turn and only becomes durable if the user applies it.
type Adjustment struct {
	Reason           string `json:"reason"`
	OriginalCalories int    `json:"originalCalories"`
	AdjustedCalories int    `json:"adjustedCalories"`
	OriginalProtein  int    `json:"originalProtein"`
	AdjustedProtein  int    `json:"adjustedProtein"`
	OriginalCarbs    int    `json:"originalCarbs"`
	AdjustedCarbs    int    `json:"adjustedCarbs"`
	OriginalFat      int    `json:"originalFat"`
	AdjustedFat      int    `json:"adjustedFat"`
	ValidForDate     string `json:"validForDate"`
}

const (
	highActivityBonus = 150
	poorSleepPenalty  = -100
	lowRecoveryFloor  = 50

	// Calorie redistribution: 30/45/25 split over 4/4/9 kcal per gram.
	proteinShare = 0.30
	carbShare    = 0.45
	fatShare     = 0.25
)

// Compute evaluates the adjustment rules in fixed order and returns the
// net recommendation, or nil when the summed calorie delta is zero.
func Compute(uc snapshot.UserContext) *Adjustment {
	var delta int
	var reasons []string

	// 1. Workout performed today: return half the burn for recovery.
	if len(uc.Activity.Workouts) > 0 {
		burned := 0
		for _, w := range uc.Activity.Workouts {
			burned += w.CaloriesBurned
		}
		d := round(0.5 * float64(burned))
		delta += d
		reasons = append(reasons, fmt.Sprintf("Workout detected (+%d kcal for recovery).", d))
	}

	// 2. High activity: steps well past the daily goal.
	if uc.Goals.DailySteps > 0 && float64(uc.Activity.Steps) > float64(uc.Goals.DailySteps)*1.5 {
		delta += highActivityBonus
		reasons = append(reasons, fmt.Sprintf("High activity day (+%d kcal).", highActivityBonus))
	}

	// 3. Poor sleep: pull calories to prevent stress eating.
	if uc.Health != nil && uc.Health.Sleep == snapshot.SleepPoor {
		delta += poorSleepPenalty
		reasons = append(reasons, fmt.Sprintf("Poor sleep (%d kcal to prevent stress eating).", poorSleepPenalty))
	}

	// 4. Low recovery: guidance only, no calorie change.
	if uc.Health != nil && uc.Health.Recovery < lowRecoveryFloor {
		reasons = append(reasons, "Low recovery - prioritize protein for recovery.")
	}

	// A zero-net adjustment is not surfaced.
	if delta == 0 {
		return nil
	}

	adj := &Adjustment{
		Reason:           strings.Join(reasons, " "),
		OriginalCalories: uc.Goals.DailyCalories,
		AdjustedCalories: uc.Goals.DailyCalories + delta,
		OriginalProtein:  uc.Goals.ProteinG,
		OriginalCarbs:    uc.Goals.CarbsG,
		OriginalFat:      uc.Goals.FatG,
		ValidForDate:     uc.CapturedAt.Format("2006-01-02"),
	}
	adj.AdjustedProtein = adj.OriginalProtein + round(float64(delta)*proteinShare/4)
	adj.AdjustedCarbs = adj.OriginalCarbs + round(float64(delta)*carbShare/4)
	adj.AdjustedFat = adj.OriginalFat + round(float64(delta)*fatShare/9)
	return adj
}

// CalorieDelta is the signed net calorie change.
func (a *Adjustment) CalorieDelta() int {
	return a.AdjustedCalories - a.OriginalCalories
}

func round(v float64) int {
	return int(math.Round(v))
}
