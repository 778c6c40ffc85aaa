package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Source interfaces over the app's external read stores. Implementations
// live outside this module (health-store bridges, wearable adapters);
// tests use fakes.

type ProfileSource interface {
	Profile(ctx context.Context) (Profile, error)
}

type GoalsSource interface {
	Goals(ctx context.Context) (Goals, error)
}

type NutritionSource interface {
	ConsumedToday(ctx context.Context) (Nutrition, error)
}

type ActivitySource interface {
	ActivityToday(ctx context.Context) (Activity, error)
}

type HealthSource interface {
	// HealthToday may return (nil, nil) when no wearable data exists.
	HealthToday(ctx context.Context) (*Health, error)
}

type CycleSource interface {
	CycleToday(ctx context.Context) (*Cycle, error)
}

type ProtocolSource interface {
	ActiveProtocols(ctx context.Context) ([]Protocol, error)
}

type WearableSource interface {
	ConnectedProviders(ctx context.Context) ([]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Builder assembles UserContext snapshots. Any source may be nil; a nil
// or failing source contributes its zero value instead of aborting the
// build.
type Builder struct {
	Profiles  ProfileSource
	Goals     GoalsSource
	Nutrition NutritionSource
	Activity  ActivitySource
	Health    HealthSource
	Cycle     CycleSource
	Protocols ProtocolSource
	Wearables WearableSource

	clock  Clock
	logger *slog.Logger
}

// NewBuilder creates a Builder over the given sources.
func NewBuilder() *Builder {
	return &Builder{clock: realClock{}, logger: slog.Default()}
}

// WithClock overrides the builder's clock (for testing).
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// Build assembles one consistent snapshot. It never fails: unavailable
// sources are logged and replaced by neutral defaults.
func (b *Builder) Build(ctx context.Context) UserContext {
	uc := UserContext{CapturedAt: b.clock.Now()}

	if b.Profiles != nil {
		p, err := b.Profiles.Profile(ctx)
		if err != nil {
			b.logger.Warn("profile source unavailable", "error", err)
		} else {
			uc.Profile = p
		}
	}
	if b.Goals != nil {
		g, err := b.Goals.Goals(ctx)
		if err != nil {
			b.logger.Warn("goals source unavailable", "error", err)
		} else {
			uc.Goals = g
		}
	}
	if b.Nutrition != nil {
		n, err := b.Nutrition.ConsumedToday(ctx)
		if err != nil {
			b.logger.Warn("nutrition source unavailable", "error", err)
		} else {
			uc.Nutrition = n
		}
	}
	if b.Activity != nil {
		a, err := b.Activity.ActivityToday(ctx)
		if err != nil {
			b.logger.Warn("activity source unavailable", "error", err)
		} else {
			uc.Activity = a
		}
	}
	if b.Health != nil {
		h, err := b.Health.HealthToday(ctx)
		if err != nil {
			b.logger.Warn("health source unavailable", "error", err)
		} else {
			uc.Health = h
		}
	}
	if b.Cycle != nil {
		c, err := b.Cycle.CycleToday(ctx)
		if err != nil {
			b.logger.Warn("cycle source unavailable", "error", err)
		} else {
			uc.Cycle = c
		}
	}
	if b.Protocols != nil {
		p, err := b.Protocols.ActiveProtocols(ctx)
		if err != nil {
			b.logger.Warn("protocol source unavailable", "error", err)
		} else {
			uc.Protocols = p
		}
	}
	if b.Wearables != nil {
		w, err := b.Wearables.ConnectedProviders(ctx)
		if err != nil {
			b.logger.Warn("wearable source unavailable", "error", err)
		} else {
			sort.Strings(w)
			uc.Wearables = w
		}
	}

	return uc
}

// FormatForPrompt renders the snapshot as the textual block injected
// into prompts. Field order is fixed so the model sees consistent
// phrasing turn to turn and tests can compare output verbatim.
func FormatForPrompt(uc UserContext) string {
	var sb strings.Builder

	name := uc.Profile.Name
	if name == "" {
		name = "User"
	}
	fmt.Fprintf(&sb, "User: %s", name)
	if uc.Profile.AgeYears > 0 {
		fmt.Fprintf(&sb, " (%dy", uc.Profile.AgeYears)
		if uc.Profile.WeightKg > 0 {
			fmt.Fprintf(&sb, ", %.1f kg", uc.Profile.WeightKg)
		}
		sb.WriteString(")")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Goals: %d kcal | P %dg | C %dg | F %dg | %d steps\n",
		uc.Goals.DailyCalories, uc.Goals.ProteinG, uc.Goals.CarbsG, uc.Goals.FatG, uc.Goals.DailySteps)

	fmt.Fprintf(&sb, "Consumed today: %d kcal | P %dg | C %dg | F %dg | %d meals logged\n",
		uc.Nutrition.Calories, uc.Nutrition.ProteinG, uc.Nutrition.CarbsG, uc.Nutrition.FatG, uc.Nutrition.MealsLogged)

	fmt.Fprintf(&sb, "Activity today: %d steps", uc.Activity.Steps)
	if len(uc.Activity.Workouts) > 0 {
		sb.WriteString("; workouts:")
		for _, w := range uc.Activity.Workouts {
			fmt.Fprintf(&sb, " %s (%d min, %d kcal)", w.Name, w.DurationMin, w.CaloriesBurned)
		}
	}
	sb.WriteString("\n")

	if uc.Health != nil {
		fmt.Fprintf(&sb, "Health: sleep %s, recovery %d/100\n", orUnknown(string(uc.Health.Sleep)), uc.Health.Recovery)
	}
	if uc.Cycle != nil {
		fmt.Fprintf(&sb, "Cycle: %s (day %d)\n", uc.Cycle.Phase, uc.Cycle.Day)
	}
	if len(uc.Protocols) > 0 {
		names := make([]string, len(uc.Protocols))
		for i, p := range uc.Protocols {
			if p.Phase != "" {
				names[i] = fmt.Sprintf("%s (%s)", p.Name, p.Phase)
			} else {
				names[i] = p.Name
			}
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, "Active protocols: %s\n", strings.Join(names, ", "))
	}
	if len(uc.Wearables) > 0 {
		fmt.Fprintf(&sb, "Connected wearables: %s\n", strings.Join(uc.Wearables, ", "))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
