// Package app wires the notification pipeline: load a dataset, normalize it,
// render one message per record, preview, dispatch and journal the run.
package app

import (
	"fmt"
	"io"

	"venuemail/internal/config"
	"venuemail/internal/dispatch"
	"venuemail/internal/render"
	"venuemail/internal/storage"
	logx "venuemail/pkg/logx"
)

// SenderFactory builds the transport for one run.
type SenderFactory func(relay dispatch.RelayConfig, creds config.Credentials) (dispatch.Sender, error)

// App holds what is shared between runs. Everything run-specific lives in Run.
type App struct {
	cfg      *config.Config
	relay    dispatch.RelayConfig
	renderer *render.Renderer
	log      logx.Logger
	out      io.Writer
	store    storage.Store
	metrics  *dispatch.Metrics

	newSender SenderFactory
}

type Option func(*App)

// WithLogger sets the diagnostic logger.
func WithLogger(l logx.Logger) Option { return func(a *App) { a.log = l } }

// WithOutput sets where the operator report is printed (default stdout).
func WithOutput(w io.Writer) Option { return func(a *App) { a.out = w } }

// WithStore journals every run to st.
func WithStore(st storage.Store) Option { return func(a *App) { a.store = st } }

// WithMetrics records dispatch outcomes on m.
func WithMetrics(m *dispatch.Metrics) Option { return func(a *App) { a.metrics = m } }

// WithSenderFactory replaces the SMTP transport.
func WithSenderFactory(f SenderFactory) Option { return func(a *App) { a.newSender = f } }

// New validates cfg and prepares the renderer.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	relay, err := mapRelayConfig(cfg)
	if err != nil {
		return nil, err
	}

	renderer := render.New()
	if p := cfg.Template.Path; p != "" {
		renderer, err = render.FromFile(p)
		if err != nil {
			return nil, fmt.Errorf("template.path: %w", err)
		}
	}

	a := &App{
		cfg:       cfg,
		relay:     relay,
		renderer:  renderer,
		out:       logx.Stdout(),
		newSender: smtpSender,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log.IsZero() {
		a.log = logx.Nop()
	}
	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Output is where the operator report goes.
func (a *App) Output() io.Writer { return a.out }

// Store returns the run journal, nil when disabled.
func (a *App) Store() storage.Store { return a.store }

func smtpSender(relay dispatch.RelayConfig, creds config.Credentials) (dispatch.Sender, error) {
	return dispatch.NewSMTPSender(relay, creds.User, creds.Password)
}
