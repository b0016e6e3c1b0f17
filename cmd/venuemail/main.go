package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"venuemail/internal/app"
	"venuemail/internal/config"
	logx "venuemail/pkg/logx"
)

const usage = `usage: venuemail <command> [flags]

commands:
  preview   load, normalize and render a dataset; print the table
  send      preview, confirm and dispatch a dataset
  watch     dispatch every dataset dropped into a directory
  sample    write an example dataset (csv or xlsx)
  history   list journaled runs

run "venuemail <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return app.ExitBatchError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, rest := args[0], args[1:]
	var (
		code int
		err  error
	)
	switch cmd {
	case "preview":
		code, err = cmdPreview(ctx, rest)
	case "send":
		code, err = cmdSend(ctx, rest)
	case "watch":
		code, err = cmdWatch(ctx, rest)
	case "sample":
		code, err = cmdSample(rest)
	case "history":
		code, err = cmdHistory(ctx, rest)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return app.ExitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return app.ExitBatchError
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		}
		return app.ExitBatchError
	}
	return code
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	if v = strings.TrimSpace(v); v != "" {
		*s = append(*s, v)
	}
	return nil
}

// env is what every command that touches the pipeline needs.
type env struct {
	cfg  *config.Config
	logs *logx.Service
	log  logx.Logger
}

func (e *env) Close() {
	if e.logs != nil {
		_ = e.logs.Close()
	}
}

func setup(cfgPath string) (*env, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetLogger(logx.NewConsole("WARN").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load(os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgm.Path(), err)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log.Debug("config loaded", append(config.LogFields(cfg), logx.String("path", cfgm.Path()))...)
	return &env{cfg: cfg, logs: logs, log: log}, nil
}
