package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Storage StorageConfig
	Coach   CoachConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type BackendConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

type StorageConfig struct {
	DataDir string
}

type CoachConfig struct {
	Persona       string
	PremiumUser   bool
	PlanSupersede bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Backend: BackendConfig{
			Model:     "anthropic/claude-sonnet-4",
			MaxTokens: 1024,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Coach: CoachConfig{
			Persona:       "balanced",
			PlanSupersede: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "coachd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coachd"
	}
	return filepath.Join(home, ".local", "share", "coachd")
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/coachd/config.json (falling back to
// ~/.config/coachd/config.json) and applies COACHD_* environment
// overrides. The backend API key is required.
func Load() (Config, error) {
	return loadWith(newFileBackend(""))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Backend.APIKey == "" {
		return Config{}, fmt.Errorf(
			"missing required config: backend API key. Set it via environment variable COACHD_OPENROUTER_API_KEY")
	}

	return cfg, nil
}

// LoadUnchecked is Load without the required-key validation, for
// commands that never call the backend (status, config, plans).
func LoadUnchecked() (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, newFileBackend("")); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading config key %q: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading config key %q: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				return fmt.Errorf("reading config key %q: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}
