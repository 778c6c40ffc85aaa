package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigBackend abstracts config storage so tests can substitute an
// in-memory map. The production backend is a JSON file.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}

// fileBackend stores config as a flat JSON object of dotted keys at
// $XDG_CONFIG_HOME/coachd/config.json.
type fileBackend struct {
	path string
}

func newFileBackend(path string) *fileBackend {
	if path == "" {
		path = defaultConfigPath()
	}
	return &fileBackend{path: path}
}

func defaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".coachd", "config.json")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "coachd", "config.json")
}

func (f *fileBackend) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", f.path, err)
	}
	return m, nil
}

func (f *fileBackend) save(m map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, append(data, '\n'), 0o600)
}

func (f *fileBackend) GetString(key string) (string, bool, error) {
	m, err := f.load()
	if err != nil {
		return "", false, err
	}
	raw, ok := m[key]
	if !ok {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, fmt.Errorf("config key %q is not a string: %w", key, err)
	}
	return v, true, nil
}

func (f *fileBackend) GetInt(key string) (int, bool, error) {
	m, err := f.load()
	if err != nil {
		return 0, false, err
	}
	raw, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("config key %q is not an integer: %w", key, err)
	}
	return v, true, nil
}

func (f *fileBackend) GetBool(key string) (bool, bool, error) {
	m, err := f.load()
	if err != nil {
		return false, false, err
	}
	raw, ok := m[key]
	if !ok {
		return false, false, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false, fmt.Errorf("config key %q is not a boolean: %w", key, err)
	}
	return v, true, nil
}

func (f *fileBackend) set(key string, v any) error {
	m, err := f.load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = raw
	return f.save(m)
}

func (f *fileBackend) SetString(key, val string) error { return f.set(key, val) }
func (f *fileBackend) SetInt(key string, val int) error { return f.set(key, val) }
func (f *fileBackend) SetBool(key string, val bool) error { return f.set(key, val) }

func (f *fileBackend) Delete(key string) error {
	m, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return f.save(m)
}
