package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	logx "venuemail/pkg/logx"
)

// DefaultPath is used when -config is not given. A missing file at the
// default path is not an error: built-in defaults apply.
const DefaultPath = "./venuemail.yaml"

type ConfigManager struct {
	path     string
	optional bool

	log logx.Logger
}

// NewConfigManager returns a manager for path. An empty path means
// DefaultPath, which may be absent.
func NewConfigManager(path string) *ConfigManager {
	path = strings.TrimSpace(path)
	if path == "" {
		return &ConfigManager{path: DefaultPath, optional: true}
	}
	return &ConfigManager{path: path}
}

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

func (m *ConfigManager) Path() string { return m.path }

// Parse reads the file on top of Default(). Unknown keys and trailing data
// are rejected.
func (m *ConfigManager) Parse() (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(m.path)
	if err != nil {
		if m.optional && errors.Is(err, fs.ErrNotExist) {
			if !m.log.IsZero() {
				m.log.Debug("config file not found; using defaults", logx.String("path", m.path))
			}
			return &cfg, nil
		}
		return nil, err
	}
	if err := decodeInto(m.path, b, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return &cfg, nil
}

func decodeInto(path string, b []byte, cfg *Config) error {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(jb)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing data")
		}
		return err
	}
	return nil
}

// Load parses, overlays the environment and validates.
func (m *ConfigManager) Load(getenv func(string) string) (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
