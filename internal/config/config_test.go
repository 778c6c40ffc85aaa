package config

import (
	"path/filepath"
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	strings map[string]string
	ints    map[string]int
	bools   map[string]bool
}

func newMapBackend() *mapBackend {
	return &mapBackend{
		strings: map[string]string{},
		ints:    map[string]int{},
		bools:   map[string]bool{},
	}
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *mapBackend) GetBool(key string) (bool, bool, error) {
	v, ok := m.bools[key]
	return v, ok, nil
}

func (m *mapBackend) SetString(key, val string) error  { m.strings[key] = val; return nil }
func (m *mapBackend) SetInt(key string, val int) error { m.ints[key] = val; return nil }
func (m *mapBackend) SetBool(key string, val bool) error {
	m.bools[key] = val
	return nil
}
func (m *mapBackend) Delete(key string) error { return nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.strings["backend.api_key"] = "sk-test"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Backend.MaxTokens != 1024 {
		t.Errorf("maxTokens = %d", cfg.Backend.MaxTokens)
	}
	if cfg.Coach.Persona != "balanced" {
		t.Errorf("persona = %q", cfg.Coach.Persona)
	}
	if !cfg.Coach.PlanSupersede {
		t.Error("planSupersede should default to true")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	clearEnv(t)
	_, err := loadWith(newMapBackend())
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "COACHD_OPENROUTER_API_KEY") {
		t.Errorf("error should name the env var: %v", err)
	}
}

func TestLoadBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.strings["backend.api_key"] = "sk-test"
	b.strings["backend.model"] = "some/other-model"
	b.ints["server.port"] = 5700
	b.bools["coach.plan_supersede"] = false

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Backend.Model != "some/other-model" {
		t.Errorf("model = %q", cfg.Backend.Model)
	}
	if cfg.Server.Port != 5700 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Coach.PlanSupersede {
		t.Error("planSupersede should be false")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	clearEnv(t)
	b := newMapBackend()
	b.strings["backend.api_key"] = "sk-file"
	b.ints["server.port"] = 5700

	t.Setenv("COACHD_OPENROUTER_API_KEY", "sk-env")
	t.Setenv("COACHD_SERVER_PORT", "6800")
	t.Setenv("COACHD_COACH_PREMIUM", "true")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Backend.APIKey != "sk-env" {
		t.Errorf("apiKey = %q", cfg.Backend.APIKey)
	}
	if cfg.Server.Port != 6800 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !cfg.Coach.PremiumUser {
		t.Error("premium override not applied")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	b := newFileBackend(path)

	if err := b.SetString("backend.model", "m1"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 9999); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetBool("coach.premium", true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}

	s, ok, err := b.GetString("backend.model")
	if err != nil || !ok || s != "m1" {
		t.Errorf("GetString = %q, %v, %v", s, ok, err)
	}
	i, ok, err := b.GetInt("server.port")
	if err != nil || !ok || i != 9999 {
		t.Errorf("GetInt = %d, %v, %v", i, ok, err)
	}
	v, ok, err := b.GetBool("coach.premium")
	if err != nil || !ok || !v {
		t.Errorf("GetBool = %v, %v, %v", v, ok, err)
	}

	if err := b.Delete("backend.model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := b.GetString("backend.model"); ok {
		t.Error("key still present after delete")
	}
}

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "nope", "config.json"))
	if _, ok, err := b.GetString("backend.model"); ok || err != nil {
		t.Errorf("GetString on missing file = %v, %v", ok, err)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Backend.APIKey = "sk-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "backend.api_key" {
			t.Error("secret key listed")
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Errorf("secret value leaked in %q", k.Key)
		}
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "backend.api_key" {
			t.Error("secret key listed as settable")
		}
	}
}

func TestAPIToken(t *testing.T) {
	t.Setenv("COACHD_API_TOKEN", "")
	dir := t.TempDir()

	tok, err := APIToken(dir)
	if err != nil {
		t.Fatalf("APIToken: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(tok))
	}

	// Second call returns the persisted token.
	again, err := APIToken(dir)
	if err != nil {
		t.Fatalf("APIToken: %v", err)
	}
	if again != tok {
		t.Error("token not stable across calls")
	}
}

func TestAPITokenEnvOverride(t *testing.T) {
	t.Setenv("COACHD_API_TOKEN", "fixed-token")
	tok, err := APIToken(t.TempDir())
	if err != nil {
		t.Fatalf("APIToken: %v", err)
	}
	if tok != "fixed-token" {
		t.Errorf("token = %q", tok)
	}
}
