package dispatch

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"time"

	"golang.org/x/time/rate"

	logx "venuemail/pkg/logx"
)

// ErrSkipped marks messages never attempted because the run was cancelled.
var ErrSkipped = errors.New("not attempted")

// Result is the outcome for one message.
type Result struct {
	Line      int
	Recipient string
	CC        string
	// Attempted is true when a relay session was opened for this message.
	Attempted bool
	Took      time.Duration
	Err       error
}

func (r Result) OK() bool { return r.Err == nil }

// Status is "sent", "failed" or "skipped".
func (r Result) Status() string {
	switch {
	case r.Err == nil:
		return "sent"
	case errors.Is(r.Err, ErrSkipped):
		return "skipped"
	default:
		return "failed"
	}
}

// Report collects per-message results in input order.
type Report struct {
	Results []Result
	Took    time.Duration
}

func (r Report) count(status string) int {
	n := 0
	for _, res := range r.Results {
		if res.Status() == status {
			n++
		}
	}
	return n
}

func (r Report) Sent() int    { return r.count("sent") }
func (r Report) Failed() int  { return r.count("failed") }
func (r Report) Skipped() int { return r.count("skipped") }

// Config configures a Dispatcher.
type Config struct {
	From Identity
	CC   string
	// RatePerSec paces sessions; 0 disables pacing.
	RatePerSec int
}

// Dispatcher runs the one-at-a-time send loop.
type Dispatcher struct {
	cfg     Config
	sender  Sender
	atts    []*Attachment
	limiter *rate.Limiter
	metrics *Metrics
	log     logx.Logger

	onResult func(Result)
}

type Option func(*Dispatcher)

// WithMetrics records outcomes on m.
func WithMetrics(m *Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

// WithLogger sets the diagnostic logger.
func WithLogger(l logx.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// WithObserver registers fn to be called after every message, in order.
func WithObserver(fn func(Result)) Option { return func(d *Dispatcher) { d.onResult = fn } }

// New returns a Dispatcher sending through s with the shared attachments.
func New(cfg Config, s Sender, atts []*Attachment, opts ...Option) *Dispatcher {
	d := &Dispatcher{cfg: cfg, sender: s, atts: atts}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	for _, o := range opts {
		o(d)
	}
	if d.log.IsZero() {
		d.log = logx.Nop()
	}
	return d
}

// Run attempts every message in order. One message's failure never stops
// the loop; only ctx cancellation does, and the remaining messages are then
// reported as skipped.
func (d *Dispatcher) Run(ctx context.Context, batch []Outgoing) Report {
	start := time.Now()
	rep := Report{Results: make([]Result, 0, len(batch))}

	for i, out := range batch {
		if err := ctx.Err(); err != nil {
			for _, rest := range batch[i:] {
				d.emit(&rep, Result{
					Line:      rest.Line,
					Recipient: rest.To,
					CC:        d.cfg.CC,
					Err:       fmt.Errorf("%w: %v", ErrSkipped, err),
				})
			}
			break
		}
		d.emit(&rep, d.one(ctx, out))
	}

	rep.Took = time.Since(start)
	return rep
}

func (d *Dispatcher) one(ctx context.Context, out Outgoing) Result {
	res := Result{Line: out.Line, Recipient: out.To, CC: d.cfg.CC}
	if out.Err != nil {
		res.Err = out.Err
		return res
	}
	if _, err := netmail.ParseAddress(out.To); err != nil {
		res.Err = fmt.Errorf("invalid recipient address %q: %w", out.To, err)
		return res
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("%w: %v", ErrSkipped, err)
			return res
		}
	}

	m := Envelope(d.cfg.From, d.cfg.CC, out, d.atts)
	begin := time.Now()
	res.Attempted = true
	res.Err = d.sender.Send(ctx, m)
	res.Took = time.Since(begin)

	for _, a := range d.atts {
		if err := a.Rewind(); err != nil {
			d.log.Error("attachment rewind failed", logx.String("name", a.Name()), logx.Err(err))
		}
	}
	return res
}

func (d *Dispatcher) emit(rep *Report, res Result) {
	rep.Results = append(rep.Results, res)
	d.metrics.observe(res)

	fields := []logx.Field{
		logx.Int("line", res.Line),
		logx.String("to", res.Recipient),
		logx.String("result", res.Status()),
	}
	if res.Attempted {
		fields = append(fields, logx.Duration("took", res.Took))
	}
	if res.OK() {
		d.log.Debug("notification sent", fields...)
	} else {
		d.log.Debug("notification not sent", append(fields, logx.Err(res.Err))...)
	}

	if d.onResult != nil {
		d.onResult(res)
	}
}
