package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables understood by venuemail.
const (
	EnvRelayHost    = "VENUEMAIL_RELAY_HOST"
	EnvRelayPort    = "VENUEMAIL_RELAY_PORT"
	EnvMailDomain   = "VENUEMAIL_MAIL_DOMAIN"
	EnvMailCC       = "VENUEMAIL_MAIL_CC"
	EnvSMTPUser     = "VENUEMAIL_SMTP_USER"
	EnvSMTPPassword = "VENUEMAIL_SMTP_PASSWORD"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays relay and mail settings from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if cfg == nil || getenv == nil {
		return nil
	}
	if v := strings.TrimSpace(getenv(EnvRelayHost)); v != "" {
		cfg.Relay.Host = v
	}
	if v := strings.TrimSpace(getenv(EnvRelayPort)); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRelayPort, err)
		}
		cfg.Relay.Port = p
	}
	if v := strings.TrimSpace(getenv(EnvMailDomain)); v != "" {
		cfg.Mail.Domain = v
	}
	if v := strings.TrimSpace(getenv(EnvMailCC)); v != "" {
		cfg.Mail.CC = v
	}
	return nil
}

// Credentials is the sender identity for one run. It is never persisted.
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.User) != "" && c.Password != ""
}

// CredentialsFromEnv reads the sender identity from the environment.
// Either field may be empty; callers prompt for what is missing.
func CredentialsFromEnv(getenv func(string) string) Credentials {
	if getenv == nil {
		return Credentials{}
	}
	return Credentials{
		User:     strings.TrimSpace(getenv(EnvSMTPUser)),
		Password: getenv(EnvSMTPPassword),
	}
}
