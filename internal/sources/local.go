// Package sources implements the snapshot source interfaces over a
// local state file. The companion app (or anything else) pushes the
// user's current profile, goals, and today's health data through the
// API; the orchestrator reads it back each turn. Day-scoped fields are
// only served for the date they were written for.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/helioform/coachd/internal/snapshot"
)

// State is the full pushed user state.
type State struct {
	Date      string              `json:"date"` // YYYY-MM-DD the day-scoped fields belong to
	Profile   snapshot.Profile    `json:"profile"`
	Goals     snapshot.Goals      `json:"goals"`
	Nutrition snapshot.Nutrition  `json:"nutrition"`
	Activity  snapshot.Activity   `json:"activity"`
	Health    *snapshot.Health    `json:"health,omitempty"`
	Cycle     *snapshot.Cycle     `json:"cycle,omitempty"`
	Protocols []snapshot.Protocol `json:"protocols,omitempty"`
	Wearables []string            `json:"wearables,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// LocalStore reads and writes the state file. It satisfies every
// snapshot source interface.
type LocalStore struct {
	path string
	mu   sync.RWMutex
}

// NewLocalStore creates a LocalStore over dataDir/state.json.
func NewLocalStore(dataDir string) *LocalStore {
	return &LocalStore{path: filepath.Join(dataDir, "state.json")}
}

// Put replaces the stored state.
func (l *LocalStore) Put(s State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.UpdatedAt = time.Now()
	if s.Date == "" {
		s.Date = s.UpdatedAt.Format("2006-01-02")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return os.WriteFile(l.path, append(data, '\n'), 0o600)
}

// Get returns the stored state, or a zero state if none exists yet.
func (l *LocalStore) Get() (State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("reading state file: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("parsing state file: %w", err)
	}
	return s, nil
}

// today loads state and reports whether its day-scoped fields are for
// the current calendar day.
func (l *LocalStore) today() (State, bool, error) {
	s, err := l.Get()
	if err != nil {
		return State{}, false, err
	}
	return s, s.Date == time.Now().Format("2006-01-02"), nil
}

func (l *LocalStore) Profile(ctx context.Context) (snapshot.Profile, error) {
	s, err := l.Get()
	if err != nil {
		return snapshot.Profile{}, err
	}
	return s.Profile, nil
}

func (l *LocalStore) Goals(ctx context.Context) (snapshot.Goals, error) {
	s, err := l.Get()
	if err != nil {
		return snapshot.Goals{}, err
	}
	return s.Goals, nil
}

func (l *LocalStore) ConsumedToday(ctx context.Context) (snapshot.Nutrition, error) {
	s, fresh, err := l.today()
	if err != nil || !fresh {
		return snapshot.Nutrition{}, err
	}
	return s.Nutrition, nil
}

func (l *LocalStore) ActivityToday(ctx context.Context) (snapshot.Activity, error) {
	s, fresh, err := l.today()
	if err != nil || !fresh {
		return snapshot.Activity{}, err
	}
	return s.Activity, nil
}

func (l *LocalStore) HealthToday(ctx context.Context) (*snapshot.Health, error) {
	s, fresh, err := l.today()
	if err != nil || !fresh {
		return nil, err
	}
	return s.Health, nil
}

func (l *LocalStore) CycleToday(ctx context.Context) (*snapshot.Cycle, error) {
	s, fresh, err := l.today()
	if err != nil || !fresh {
		return nil, err
	}
	return s.Cycle, nil
}

func (l *LocalStore) ActiveProtocols(ctx context.Context) ([]snapshot.Protocol, error) {
	s, err := l.Get()
	if err != nil {
		return nil, err
	}
	return s.Protocols, nil
}

func (l *LocalStore) ConnectedProviders(ctx context.Context) ([]string, error) {
	s, err := l.Get()
	if err != nil {
		return nil, err
	}
	return s.Wearables, nil
}
