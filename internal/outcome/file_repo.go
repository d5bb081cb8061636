package outcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// FileRepo keeps the outcome table in a single JSON object keyed by phone.
// Every accepted write rewrites the whole file (temp file + rename).
//
// A missing file is an empty table. An unreadable or malformed file is also
// treated as empty and reported at error level: the precedence guard cannot
// see results lost that way, so operators need the signal.
type FileRepo struct {
	mu   sync.Mutex
	path string
	rows map[string]Outcome
	log  *slog.Logger
}

func OpenFileRepo(path string, log *slog.Logger) (*FileRepo, error) {
	if path == "" {
		return nil, errors.New("outcome: file path required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("outcome: create dir: %w", err)
	}
	r := &FileRepo{path: path, log: log}
	r.rows = r.load()
	return r, nil
}

func (r *FileRepo) load() map[string]Outcome {
	rows := map[string]Outcome{}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.log.Error("outcome table unreadable, starting empty", "path", r.path, "err", err)
		}
		return rows
	}
	if len(data) == 0 {
		return rows
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		r.log.Error("outcome table corrupt, starting empty", "path", r.path, "err", err)
		return map[string]Outcome{}
	}
	return rows
}

func (r *FileRepo) Get(ctx context.Context, phone string) (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[phone]
	return o, ok, nil
}

func (r *FileRepo) PutIfPrecedence(ctx context.Context, o Outcome) (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.rows[o.Phone]
	stored, accepted, _ := putIfPrecedence(r.rows, o)
	if !accepted {
		return stored, false, nil
	}
	if err := r.flush(); err != nil {
		if had {
			r.rows[o.Phone] = prev
		} else {
			delete(r.rows, o.Phone)
		}
		return Outcome{}, false, err
	}
	return stored, true, nil
}

func (r *FileRepo) List(ctx context.Context) ([]Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedRows(r.rows), nil
}

func (r *FileRepo) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.rows
	r.rows = map[string]Outcome{}
	if err := r.flush(); err != nil {
		r.rows = prev
		return err
	}
	return nil
}

func (r *FileRepo) flush() error {
	data, err := json.MarshalIndent(r.rows, "", "  ")
	if err != nil {
		return fmt.Errorf("outcome: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("outcome: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("outcome: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("outcome: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("outcome: rename: %w", err)
	}
	return nil
}
