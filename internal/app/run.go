package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"venuemail/internal/config"
	"venuemail/internal/dispatch"
	"venuemail/internal/record"
	logx "venuemail/pkg/logx"
)

// Run is the scope of one batch: dataset, attachments and the sender
// identity. Nothing here outlives the run.
type Run struct {
	ID          string
	Dataset     string
	Attachments []string
	Credentials config.Credentials
	// DryRun builds every envelope but opens no relay session.
	DryRun bool
}

// NewRun returns a Run with a fresh id.
func NewRun(dataset string, creds config.Credentials, attachments ...string) Run {
	return Run{
		ID:          uuid.NewString(),
		Dataset:     dataset,
		Attachments: attachments,
		Credentials: creds,
	}
}

// Batch is a normalized and rendered dataset.
type Batch struct {
	Source   string
	Records  []record.NotificationRecord
	Dropped  []record.Dropped
	Outgoing []dispatch.Outgoing
}

// Rendered counts messages that rendered cleanly.
func (b *Batch) Rendered() int {
	n := 0
	for _, o := range b.Outgoing {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Prepare loads run.Dataset and renders it. Any error is batch-level and
// is journaled against run.
func (a *App) Prepare(ctx context.Context, run Run) (*Batch, error) {
	source := filepath.Base(run.Dataset)
	t, err := record.Load(run.Dataset)
	if err == nil {
		var b *Batch
		if b, err = a.prepareTable(source, t); err == nil {
			return b, nil
		}
	}
	a.journal(ctx, run, source, nil, dispatch.Report{}, err)
	return nil, err
}

// PrepareData is Prepare for a dataset already in memory; source names it
// and selects the format.
func (a *App) PrepareData(ctx context.Context, run Run, source string, data []byte) (*Batch, error) {
	t, err := record.Read(source, bytes.NewReader(data))
	if err == nil {
		var b *Batch
		if b, err = a.prepareTable(source, t); err == nil {
			return b, nil
		}
	}
	a.journal(ctx, run, source, nil, dispatch.Report{}, err)
	return nil, err
}

// prepareTable normalizes t and renders one message per record, in order.
// A record that fails to render stays in the batch and is reported as a
// failure when dispatched.
func (a *App) prepareTable(source string, t record.Table) (*Batch, error) {
	res, err := record.Normalizer{Domain: a.cfg.Mail.Domain}.Normalize(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	b := &Batch{
		Source:   source,
		Records:  res.Records,
		Dropped:  res.Dropped,
		Outgoing: make([]dispatch.Outgoing, 0, len(res.Records)),
	}
	for _, rec := range res.Records {
		out := dispatch.Outgoing{Line: rec.Line, To: rec.RecipientAddress}
		msg, err := a.renderer.Render(rec)
		if err != nil {
			out.Err = fmt.Errorf("render: %w", err)
		} else {
			out.Subject = msg.Subject
			out.HTML = msg.HTML
		}
		b.Outgoing = append(b.Outgoing, out)
	}
	for _, d := range b.Dropped {
		a.log.Debug("row dropped", logx.String("source", source), logx.Int("line", d.Line), logx.String("reason", d.Reason))
	}
	a.log.Info("batch prepared",
		logx.String("source", source),
		logx.Int("records", len(b.Records)),
		logx.Int("dropped", len(b.Dropped)),
		logx.Int("rendered", b.Rendered()),
	)
	return b, nil
}
