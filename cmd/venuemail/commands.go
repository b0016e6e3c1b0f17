package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"venuemail/internal/app"
	"venuemail/internal/config"
	"venuemail/internal/dispatch"
	"venuemail/internal/observability/metrics"
	"venuemail/internal/record"
	"venuemail/internal/schedule"
	"venuemail/internal/storage"
	"venuemail/internal/watch"
	logx "venuemail/pkg/logx"
)

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to config yaml/json (default "+config.DefaultPath+" if present)")
	return fs, cfgPath
}

// datasetArg returns -data or the single positional argument.
func datasetArg(fs *flag.FlagSet, data string) (string, error) {
	if data == "" && fs.NArg() == 1 {
		data = fs.Arg(0)
	}
	if strings.TrimSpace(data) == "" {
		return "", errors.New("a dataset file is required (-data FILE)")
	}
	return data, nil
}

func newApp(e *env, st storage.Store, opts ...app.Option) (*app.App, error) {
	opts = append([]app.Option{
		app.WithLogger(e.log.With(logx.String("comp", "app"))),
		app.WithStore(st),
	}, opts...)
	return app.New(e.cfg, opts...)
}

func closeStore(st storage.Store, log logx.Logger) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		log.Warn("storage close failed", logx.Err(err))
	}
}

func cmdPreview(ctx context.Context, args []string) (int, error) {
	fs, cfgPath := newFlagSet("preview")
	data := fs.String("data", "", "dataset file (.csv or .xlsx)")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	path, err := datasetArg(fs, *data)
	if err != nil {
		return 0, err
	}
	e, err := setup(*cfgPath)
	if err != nil {
		return 0, err
	}
	defer e.Close()

	a, err := newApp(e, nil)
	if err != nil {
		return 0, err
	}
	b, err := a.Prepare(ctx, app.NewRun(path, config.Credentials{}))
	if err != nil {
		return 0, err
	}
	app.Preview(os.Stdout, b)
	return app.ExitOK, nil
}

func cmdSend(ctx context.Context, args []string) (int, error) {
	fs, cfgPath := newFlagSet("send")
	data := fs.String("data", "", "dataset file (.csv or .xlsx)")
	user := fs.String("user", "", "sender address (default $"+config.EnvSMTPUser+")")
	yes := fs.Bool("yes", false, "send without asking for confirmation")
	dry := fs.Bool("dry-run", false, "build every message but open no relay session")
	at := fs.String("at", "", `delay the batch: cron ("cron:30 8 * * *"), duration ("45m") or HH:MM offset`)
	var attach stringList
	fs.Var(&attach, "attach", "file attached to every message (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	path, err := datasetArg(fs, *data)
	if err != nil {
		return 0, err
	}

	var when schedule.Spec
	if *at != "" {
		if when, err = schedule.Parse(*at); err != nil {
			return 0, fmt.Errorf("-at: %w", err)
		}
	}

	e, err := setup(*cfgPath)
	if err != nil {
		return 0, err
	}
	defer e.Close()

	st, err := app.OpenStore(e.cfg, e.log.With(logx.String("comp", "storage")))
	if err != nil {
		return 0, err
	}
	defer closeStore(st, e.log)

	a, err := newApp(e, st)
	if err != nil {
		return 0, err
	}

	run := app.NewRun(path, config.Credentials{}, attach...)
	run.DryRun = *dry
	b, err := a.Prepare(ctx, run)
	if err != nil {
		return 0, err
	}
	app.Preview(os.Stdout, b)
	if len(b.Outgoing) == 0 {
		fmt.Println("nothing to send")
		return app.ExitOK, nil
	}

	if !run.DryRun {
		if run.Credentials, err = credentials(*user); err != nil {
			return 0, err
		}
	}
	if !*yes && !run.DryRun {
		ok, err := confirm(fmt.Sprintf("Send %d message(s) from %s with cc to %s?", len(b.Outgoing), run.Credentials.User, e.cfg.Mail.CC))
		if err != nil {
			return 0, err
		}
		if !ok {
			fmt.Println("aborted")
			return app.ExitOK, nil
		}
	}

	if *at != "" {
		next := when.Next(time.Now())
		fmt.Printf("waiting until %s\n", next.Format(time.DateTime))
		e.log.Info("batch scheduled", logx.String("run", run.ID), logx.Time("at", next))
		if err := schedule.Wait(ctx, next); err != nil {
			return 0, err
		}
	}

	rep, err := a.Send(ctx, run, b)
	if err != nil {
		return 0, err
	}
	return app.ExitCode(rep), nil
}

func cmdWatch(ctx context.Context, args []string) (int, error) {
	fs, cfgPath := newFlagSet("watch")
	dir := fs.String("dir", "", "drop directory (default watch.dir)")
	user := fs.String("user", "", "sender address (default $"+config.EnvSMTPUser+")")
	var attach stringList
	fs.Var(&attach, "attach", "file attached to every message (repeatable, default watch.attachments)")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}

	e, err := setup(*cfgPath)
	if err != nil {
		return 0, err
	}
	defer e.Close()

	if *dir != "" {
		e.cfg.Watch.Dir = *dir
	}
	if len(attach) == 0 {
		attach = e.cfg.Watch.Attachments
	}
	// Fail on a bad attachment before the first batch arrives.
	if _, err := dispatch.LoadAttachments(attach); err != nil {
		return 0, err
	}

	creds, err := credentials(*user)
	if err != nil {
		return 0, err
	}

	st, err := app.OpenStore(e.cfg, e.log.With(logx.String("comp", "storage")))
	if err != nil {
		return 0, err
	}
	defer closeStore(st, e.log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a, err := newApp(e, st, app.WithMetrics(dispatch.NewMetrics(reg)))
	if err != nil {
		return 0, err
	}

	msvc := metrics.New(metrics.Config{
		Enabled:      e.cfg.Metrics.Enabled,
		Addr:         e.cfg.Metrics.Addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, reg, e.log.With(logx.String("comp", "metrics")))
	msvc.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		msvc.Stop(stopCtx)
	}()

	w := watch.New(watch.Config{
		Dir:      e.cfg.Watch.Dir,
		Debounce: e.cfg.WatchDebounce(),
	}, a, app.NewRun("", creds, attach...), e.log.With(logx.String("comp", "watch")))
	if err := w.Run(ctx); err != nil {
		return 0, err
	}
	return app.ExitOK, nil
}

func cmdSample(args []string) (int, error) {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	format := fs.String("format", "csv", "csv or xlsx")
	out := fs.String("out", "", "output file (default stdout; xlsx takes the format from the extension)")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}

	f := record.Format(strings.ToLower(strings.TrimSpace(*format)))
	if *out != "" && !isFlagSet(fs, "format") {
		if ff, err := record.FormatOf(*out); err == nil {
			f = ff
		}
	}

	var buf bytes.Buffer
	if err := record.WriteSample(&buf, f); err != nil {
		return 0, err
	}
	if *out == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return app.ExitOK, err
	}
	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", *out)
	return app.ExitOK, nil
}

func cmdHistory(ctx context.Context, args []string) (int, error) {
	fs, cfgPath := newFlagSet("history")
	n := fs.Int("n", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	e, err := setup(*cfgPath)
	if err != nil {
		return 0, err
	}
	defer e.Close()

	st, err := app.OpenStore(e.cfg, e.log.With(logx.String("comp", "storage")))
	if err != nil {
		return 0, err
	}
	if st == nil {
		return 0, fmt.Errorf("history: %w (set storage.driver)", storage.ErrDisabled)
	}
	defer closeStore(st, e.log)

	runs, err := st.Runs(ctx, *n)
	if err != nil {
		return 0, err
	}
	app.History(os.Stdout, runs)
	return app.ExitOK, nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
