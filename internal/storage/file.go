package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "venuemail/pkg/logx"
)

// fileStore keeps the journal in two append-only JSON Lines files:
//   - <prefix>.runs.jsonl
//   - <prefix>.processed.jsonl (replayed into memory on open)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	runsPath      string
	runsFile      *os.File
	processedFile *os.File
	processed     map[string]struct{}
}

type processedRecord struct {
	Key    string    `json:"key"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"
	rf, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	processedPath := prefix + ".processed.jsonl"
	processed := map[string]struct{}{}
	if err := replayProcessed(processedPath, processed); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("processed journal replay failed", logx.String("path", processedPath), logx.Err(err))
	}

	pf, err := os.OpenFile(processedPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}

	return &fileStore{
		log:           log,
		runsPath:      runsPath,
		runsFile:      rf,
		processedFile: pf,
		processed:     processed,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.runsFile != nil {
		errs = append(errs, s.runsFile.Close())
		s.runsFile = nil
	}
	if s.processedFile != nil {
		errs = append(errs, s.processedFile.Close())
		s.processedFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) AppendRun(ctx context.Context, e RunEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return errors.New("run journal closed")
	}
	return json.NewEncoder(s.runsFile).Encode(e)
}

func (s *fileStore) MarkProcessed(ctx context.Context, key, source string, at time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processedFile == nil {
		return errors.New("processed journal closed")
	}
	if err := json.NewEncoder(s.processedFile).Encode(processedRecord{Key: key, Source: source, At: at}); err != nil {
		return err
	}
	s.processed[key] = struct{}{}
	return nil
}

func (s *fileStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[strings.TrimSpace(key)]
	return ok, nil
}

func (s *fileStore) Runs(ctx context.Context, limit int) ([]RunEntry, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.runsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []RunEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e RunEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		all = append(all, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	out := make([]RunEntry, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func replayProcessed(path string, out map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r processedRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// torn write at the tail; skip
			continue
		}
		if r.Key != "" {
			out[r.Key] = struct{}{}
		}
	}
	return sc.Err()
}
