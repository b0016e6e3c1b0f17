package dispatch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"
)

var ErrNoCredentials = errors.New("sender address and password are required")

// Sender delivers one message over its own relay session.
type Sender interface {
	Send(ctx context.Context, m *mail.Message) error
}

// RelayConfig describes the outbound relay.
type RelayConfig struct {
	Host      string
	Port      int
	Timeout   time.Duration
	StartTLS  mail.StartTLSPolicy
	LocalName string
}

// ParseStartTLS maps a config value to a mail.StartTLSPolicy.
// Empty means mandatory.
func ParseStartTLS(v string) (mail.StartTLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "mandatory":
		return mail.MandatoryStartTLS, nil
	case "opportunistic":
		return mail.OpportunisticStartTLS, nil
	case "none":
		return mail.NoStartTLS, nil
	default:
		return 0, fmt.Errorf("unknown starttls policy %q", v)
	}
}

// SMTPSender opens a fresh authenticated session for every message.
type SMTPSender struct {
	cfg      RelayConfig
	user     string
	password string
}

// NewSMTPSender returns a sender authenticating as user.
func NewSMTPSender(cfg RelayConfig, user, password string) (*SMTPSender, error) {
	if strings.TrimSpace(user) == "" || password == "" {
		return nil, ErrNoCredentials
	}
	if strings.TrimSpace(cfg.Host) == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("relay host and port are required")
	}
	return &SMTPSender{cfg: cfg, user: strings.TrimSpace(user), password: password}, nil
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.user, s.password)
	d.StartTLSPolicy = s.cfg.StartTLS
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	d.LocalName = s.cfg.LocalName
	if s.cfg.Timeout > 0 {
		d.Timeout = s.cfg.Timeout
	}
	d.RetryFailure = false
	return d
}

// Send dials, upgrades, authenticates, submits m to To+Cc and closes.
func (s *SMTPSender) Send(ctx context.Context, m *mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer().DialAndSend(m)
}
