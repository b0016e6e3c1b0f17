// Package watch turns a drop directory into a batch queue: every dataset
// file that lands there is dispatched once, in arrival order.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"venuemail/internal/app"
	"venuemail/internal/record"
	rtsup "venuemail/internal/runtime/supervisor"
	logx "venuemail/pkg/logx"
	"venuemail/pkg/systemd"
)

type Config struct {
	Dir string
	// Debounce is how long a file must stay quiet before it is read.
	Debounce time.Duration
}

// Service watches Config.Dir and feeds new datasets to the pipeline.
// Credentials and attachments come from the template Run and stay fixed
// for the life of the service.
type Service struct {
	cfg  Config
	app  *app.App
	tmpl app.Run
	log  logx.Logger

	pending  chan string
	watching chan struct{}
	once     sync.Once

	mu     sync.Mutex
	timers map[string]*time.Timer
	seen   map[string]struct{}

	// processed is called after every dataset; tests hook it.
	processed func(path string, err error)
}

func New(cfg Config, a *app.App, tmpl app.Run, log logx.Logger) *Service {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		app:      a,
		tmpl:     tmpl,
		log:      log,
		pending:  make(chan string, 64),
		watching: make(chan struct{}),
		timers:   map[string]*time.Timer{},
		seen:     map[string]struct{}{},
	}
}

// Run blocks until ctx is cancelled. Files already in the directory are
// queued first.
func (s *Service) Run(ctx context.Context) error {
	dir := strings.TrimSpace(s.cfg.Dir)
	if dir == "" {
		return fmt.Errorf("watch.dir is required")
	}
	if fi, err := os.Stat(dir); err != nil {
		return err
	} else if !fi.IsDir() {
		return fmt.Errorf("watch.dir: %s is not a directory", dir)
	}

	sup := rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(true))

	sup.Go("watch.worker", s.work)
	sup.GoRestart("watch.fsnotify", func(c context.Context) error { return s.watchOnce(c, dir) },
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
	if iv := systemd.WatchdogInterval(); iv > 0 {
		sup.Go("watch.watchdog", func(c context.Context) error {
			t := time.NewTicker(iv)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return nil
				case <-t.C:
					_, _ = systemd.Watchdog()
				}
			}
		})
	}

	// Sweep only once events are flowing so no file falls in between.
	select {
	case <-s.watching:
	case <-sup.Context().Done():
	}
	if err := s.sweep(sup.Context(), dir); err != nil {
		s.log.Warn("initial sweep failed", logx.String("dir", dir), logx.Err(err))
	}
	if ok, err := systemd.Ready(); err != nil {
		s.log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		s.log.Debug("systemd notified ready")
	}
	_, _ = systemd.Status("watching " + dir)
	s.log.Info("watching drop directory", logx.String("dir", dir), logx.Duration("debounce", s.cfg.Debounce))

	<-sup.Context().Done()
	_, _ = systemd.Stopping()
	s.stopTimers()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := sup.Stop(stopCtx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Service) watchOnce(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	s.once.Do(func() { close(s.watching) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && Eligible(ev.Name) {
				s.debounce(ctx, ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			// keep watching
			s.log.Warn("watch error", logx.Err(err))
		}
	}
}

func (s *Service) sweep(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.Type().IsRegular() && Eligible(p) {
			s.enqueue(ctx, p)
		}
	}
	return nil
}

// debounce waits for writes to settle so half-copied files are not read.
func (s *Service) debounce(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.timers[path]; t != nil {
		t.Stop()
	}
	s.timers[path] = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		delete(s.timers, path)
		s.mu.Unlock()
		s.enqueue(ctx, path)
	})
}

func (s *Service) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, t := range s.timers {
		t.Stop()
		delete(s.timers, p)
	}
}

func (s *Service) enqueue(ctx context.Context, path string) {
	select {
	case s.pending <- path:
	case <-ctx.Done():
	}
}

func (s *Service) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-s.pending:
			err := s.process(ctx, p)
			if err != nil {
				s.log.Error("dataset failed", logx.String("path", p), logx.Err(err))
			}
			if s.processed != nil {
				s.processed(p, err)
			}
		}
	}
}

func (s *Service) process(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	key := ContentKey(data)
	done, err := s.isProcessed(ctx, key)
	if err != nil {
		return err
	}
	if done {
		s.log.Info("dataset already processed", logx.String("path", path), logx.String("key", key))
		return nil
	}

	source := filepath.Base(path)
	run := s.tmpl
	run.ID = uuid.NewString()
	run.Dataset = path

	b, err := s.app.PrepareData(ctx, run, source, data)
	if err != nil {
		// A broken file is only retried when its content changes.
		s.markProcessed(ctx, key, source)
		return err
	}

	app.Preview(s.app.Output(), b)
	rep, err := s.app.Send(ctx, run, b)
	if err != nil {
		return err
	}
	s.markProcessed(ctx, key, source)
	s.log.Info("dataset processed",
		logx.String("path", path),
		logx.String("run", run.ID),
		logx.Int("sent", rep.Sent()),
		logx.Int("failed", rep.Failed()),
	)
	return nil
}

func (s *Service) isProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	_, ok := s.seen[key]
	s.mu.Unlock()
	if ok {
		return true, nil
	}
	if st := s.app.Store(); st != nil {
		return st.IsProcessed(ctx, key)
	}
	return false, nil
}

func (s *Service) markProcessed(ctx context.Context, key, source string) {
	s.mu.Lock()
	s.seen[key] = struct{}{}
	s.mu.Unlock()
	st := s.app.Store()
	if st == nil {
		return
	}
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := st.MarkProcessed(mctx, key, source, time.Now().UTC()); err != nil {
		s.log.Warn("processed ledger update failed", logx.String("key", key), logx.Err(err))
	}
}

// ContentKey identifies a dataset by content, so renames do not resend it.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Eligible reports whether path looks like a dataset. Hidden files and
// office lock files are ignored.
func Eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	_, err := record.FormatOf(base)
	return err == nil
}
