// Package schedule resolves "send later" specs for a batch.
//
// A spec is either a cron expression (the batch starts at the next fire
// time) or a delay given as a Go duration ("90m") or HH:MM ("01:30").
package schedule

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind describes the normalized kind of a spec string.
type Kind int

const (
	KindCron Kind = iota
	KindDelay
)

// Spec is a parsed schedule string.
//
// Supported forms:
//   - Cron: "30 8 * * *", "@daily", "@every 2h"
//   - Delay duration: "45m", "2h30m"
//   - Delay HH:MM: "00:50" (50 minutes), "02:30"
//
// Optional prefixes "cron:" and "in:" force the kind.
type Spec struct {
	Kind   Kind
	Cron   string
	Delay  time.Duration
	Source string // "cron" | "duration" | "hhmm"

	sched cron.Schedule
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Parse parses raw into a Spec. Cron expressions are validated eagerly.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "in:"):
		return parseDelay(strings.TrimSpace(s[len("in:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s)
	}

	sp, err := parseDelay(s)
	if err != nil {
		return Spec{}, fmt.Errorf(
			"invalid schedule %q (use cron like '30 8 * * *', HH:MM like '02:30', or duration like '45m')",
			raw,
		)
	}
	return sp, nil
}

func parseCron(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: KindCron, Cron: expr, Source: "cron", sched: sched}, nil
}

func parseDelay(v string) (Spec, error) {
	if v == "" {
		return Spec{}, fmt.Errorf("delay required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMM(v)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindDelay, Delay: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid delay %q: %w", v, err)
	}
	if d <= 0 {
		return Spec{}, fmt.Errorf("delay must be > 0")
	}
	return Spec{Kind: KindDelay, Delay: d, Source: "duration"}, nil
}

func parseHHMM(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("delay must be > 0")
	}
	return d, nil
}

// Next returns when a batch scheduled at now should start.
func (s Spec) Next(now time.Time) time.Time {
	if s.Kind == KindCron && s.sched != nil {
		return s.sched.Next(now)
	}
	return now.Add(s.Delay)
}

// Wait blocks until t or until ctx is done.
func Wait(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
