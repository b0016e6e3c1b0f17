package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"

	"venuemail/internal/dispatch"
	"venuemail/internal/storage"
	logx "venuemail/pkg/logx"
)

// Exit codes of a finished run.
const (
	ExitOK         = 0
	ExitBatchError = 1
	ExitPartial    = 2
)

// ExitCode maps a report to a process exit code.
func ExitCode(rep dispatch.Report) int {
	if rep.Failed() > 0 || rep.Skipped() > 0 {
		return ExitPartial
	}
	return ExitOK
}

// Send dispatches b one message at a time, printing a line per record and
// a summary. The returned error is batch-level only; per-record failures
// are in the report.
func (a *App) Send(ctx context.Context, run Run, b *Batch) (dispatch.Report, error) {
	rep, err := a.send(ctx, run, b)
	a.journal(ctx, run, b.Source, b, rep, err)
	return rep, err
}

func (a *App) send(ctx context.Context, run Run, b *Batch) (dispatch.Report, error) {
	log := a.log.With(logx.String("run", run.ID), logx.String("source", b.Source))

	atts, err := dispatch.LoadAttachments(run.Attachments)
	if err != nil {
		return dispatch.Report{}, err
	}

	var sender dispatch.Sender
	if run.DryRun {
		sender = dryRunSender{}
	} else {
		if !run.Credentials.Complete() {
			return dispatch.Report{}, dispatch.ErrNoCredentials
		}
		sender, err = a.newSender(a.relay, run.Credentials)
		if err != nil {
			return dispatch.Report{}, err
		}
	}

	cc := strings.TrimSpace(a.cfg.Mail.CC)
	d := dispatch.New(dispatch.Config{
		From:       dispatch.Identity{Address: run.Credentials.User, Name: a.cfg.Mail.FromName},
		CC:         cc,
		RatePerSec: a.cfg.Dispatch.RatePerSec,
	}, sender, atts,
		dispatch.WithLogger(log.With(logx.String("comp", "dispatch"))),
		dispatch.WithMetrics(a.metrics),
		dispatch.WithObserver(func(r dispatch.Result) { printResult(a.out, r, run.DryRun) }),
	)

	log.Info("dispatch started",
		logx.Int("messages", len(b.Outgoing)),
		logx.Int("attachments", len(atts)),
		logx.Bool("dry_run", run.DryRun),
	)
	rep := d.Run(ctx, b.Outgoing)
	printSummary(a.out, run, b, rep)
	log.Info("dispatch finished",
		logx.Int("sent", rep.Sent()),
		logx.Int("failed", rep.Failed()),
		logx.Int("skipped", rep.Skipped()),
		logx.Duration("took", rep.Took),
	)
	return rep, nil
}

func printResult(w io.Writer, r dispatch.Result, dry bool) {
	switch r.Status() {
	case "sent":
		verb := "sent to"
		if dry {
			verb = "would send to"
		}
		if r.CC != "" {
			fmt.Fprintf(w, "line %d: %s %s with cc to %s\n", r.Line, verb, r.Recipient, r.CC)
		} else {
			fmt.Fprintf(w, "line %d: %s %s\n", r.Line, verb, r.Recipient)
		}
	case "skipped":
		fmt.Fprintf(w, "line %d: skipped %s\n", r.Line, r.Recipient)
	default:
		fmt.Fprintf(w, "line %d: failed to send to %s: %v\n", r.Line, r.Recipient, r.Err)
	}
}

func printSummary(w io.Writer, run Run, b *Batch, rep dispatch.Report) {
	mode := ""
	if run.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "%s%s: %d sent, %d failed, %d skipped, %d dropped in %s\n",
		b.Source, mode, rep.Sent(), rep.Failed(), rep.Skipped(), len(b.Dropped), rep.Took.Round(time.Millisecond))
}

func (a *App) journal(ctx context.Context, run Run, source string, b *Batch, rep dispatch.Report, runErr error) {
	if a.store == nil || run.DryRun {
		return
	}
	e := storage.RunEntry{
		ID:      run.ID,
		At:      time.Now().UTC(),
		Source:  source,
		Total:   len(rep.Results),
		Sent:    rep.Sent(),
		Failed:  rep.Failed(),
		Skipped: rep.Skipped(),
		TookMS:  rep.Took.Milliseconds(),
	}
	if b != nil {
		e.Dropped = len(b.Dropped)
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	// The journal must not be lost to a cancelled run context.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.store.AppendRun(jctx, e); err != nil {
		a.log.Warn("run journal append failed", logx.String("run", run.ID), logx.Err(err))
	}
}

// dryRunSender renders the full MIME message and discards it.
type dryRunSender struct{}

func (dryRunSender) Send(ctx context.Context, m *mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.WriteTo(io.Discard); err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	return nil
}
