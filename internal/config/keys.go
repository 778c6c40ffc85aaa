package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "COACHD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "backend.api_key", typ: kString, env: "COACHD_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Backend.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.APIKey },
	},
	{
		key: "backend.model", typ: kString, env: "COACHD_BACKEND_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Backend.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.Model },
	},
	{
		key: "backend.max_tokens", typ: kInt, env: "COACHD_BACKEND_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Backend.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Backend.MaxTokens },
	},
	{
		key: "storage.data_dir", typ: kString, env: "COACHD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "coach.persona", typ: kString, env: "COACHD_COACH_PERSONA",
		apply:   func(cfg *Config, v any) { cfg.Coach.Persona = v.(string) },
		extract: func(cfg Config) any { return cfg.Coach.Persona },
	},
	{
		key: "coach.premium", typ: kBool, env: "COACHD_COACH_PREMIUM",
		apply:   func(cfg *Config, v any) { cfg.Coach.PremiumUser = v.(bool) },
		extract: func(cfg Config) any { return cfg.Coach.PremiumUser },
	},
	{
		key: "coach.plan_supersede", typ: kBool, env: "COACHD_COACH_PLAN_SUPERSEDE",
		apply:   func(cfg *Config, v any) { cfg.Coach.PlanSupersede = v.(bool) },
		extract: func(cfg Config) any { return cfg.Coach.PlanSupersede },
	},
	{
		key: "log.level", typ: kString, env: "COACHD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw, ok := os.LookupEnv(s.env)
		if !ok || raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if v, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, v)
			}
		case kBool:
			if v, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, v)
			}
		}
	}
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey writes a config key to the file backend.
func SetKey(key, value string) error {
	b := newFileBackend("")

	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		switch s.typ {
		case kString:
			return b.SetString(key, value)
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			return b.SetInt(key, i)
		case kBool:
			v, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid boolean value for %s: %w", key, err)
			}
			return b.SetBool(key, v)
		}
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
