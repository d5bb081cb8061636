package reporting

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/pkg/logger"
)

var (
	ErrInvalidName = errors.New("reporting: invalid report name")
	ErrNotFound    = errors.New("reporting: report not found")
)

const (
	reportPrefix = "call_report_"
	reportExt    = ".csv"
	nameLayout   = "20060102T150405Z"

	// maxSuffix bounds the collision suffixes tried for one timestamp.
	maxSuffix = 100
)

var csvHeader = []string{"client_id", "name", "phone", "result", "duration_seconds", "timestamp"}

// Generator writes immutable CSV report snapshots into a directory.
// Every call produces a new file; existing files are never opened for writing.
type Generator struct {
	dir   string
	clock func() time.Time
}

func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir, clock: time.Now}
}

func (g *Generator) Dir() string { return g.dir }

// BuildRows joins uploaded rows with outcomes by canonical phone.
// Contacts without an outcome (including dropped dispatches and rows whose
// phone could not be normalized) get the "No result yet" label.
func BuildRows(rows []contacts.Contact, outs []outcome.Outcome) []Row {
	byPhone := make(map[string]outcome.Outcome, len(outs))
	for _, o := range outs {
		byPhone[o.Phone] = o
	}

	out := make([]Row, 0, len(rows))
	for _, c := range rows {
		r := Row{ClientID: c.ClientID, Name: c.Name, Phone: c.PhoneRaw, Result: outcome.LabelNoResult}
		if key := c.Phone(); key != "" {
			if o, ok := byPhone[key]; ok {
				r.Kind = o.Result
				r.Result = o.Result.Label()
				r.DurationSeconds = o.DurationSeconds
				r.Timestamp = o.Timestamp
			}
		}
		out = append(out, r)
	}
	return out
}

// Summarize counts outcomes per kind.
func Summarize(rows []Row) Summary {
	var s Summary
	connected := 0
	for _, r := range rows {
		s.TotalContacts++
		if r.Kind == "" {
			s.NoResult++
			continue
		}
		s.WithResult++
		s.TotalDurationSeconds += r.DurationSeconds
		switch r.Kind {
		case outcome.KindTransferred:
			s.Transferred++
			connected++
		case outcome.KindLeftVoicemail:
			s.LeftVoicemail++
			connected++
		case outcome.KindAnsweredNoTransfer:
			s.AnsweredNoTransfer++
			connected++
		case outcome.KindAnsweredNoAction:
			s.AnsweredNoAction++
			connected++
		case outcome.KindNoAnswer:
			s.NoAnswer++
		case outcome.KindBusy:
			s.Busy++
		case outcome.KindFailed:
			s.Failed++
		case outcome.KindCanceled:
			s.Canceled++
		}
	}
	if s.WithResult > 0 {
		s.AverageDurationSeconds = s.TotalDurationSeconds / s.WithResult
	}
	if s.TotalContacts > 0 {
		s.ConnectionRate = float64(connected) / float64(s.TotalContacts)
		s.TransferRate = float64(s.Transferred) / float64(s.TotalContacts)
	}
	return s
}

// Generate writes a new timestamped snapshot and returns it.
func (g *Generator) Generate(ctx context.Context, runID string, rows []contacts.Contact, outs []outcome.Outcome) (Report, error) {
	if g.dir == "" {
		return Report{}, errors.New("reporting: report dir not configured")
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return Report{}, fmt.Errorf("reporting: create dir: %w", err)
	}

	now := g.clock().UTC()
	built := BuildRows(rows, outs)
	sum := Summarize(built)
	sum.RunID = runID

	f, name, err := g.createExclusive(now)
	if err != nil {
		return Report{}, err
	}
	path := f.Name()

	if err := writeCSV(f, built); err != nil {
		_ = f.Close()
		return Report{}, fmt.Errorf("reporting: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return Report{}, fmt.Errorf("reporting: close %s: %w", name, err)
	}

	logger.From(ctx).Info("report written",
		"report", name,
		"run_id", runID,
		"contacts", sum.TotalContacts,
		"transferred", sum.Transferred,
		"no_result", sum.NoResult,
	)
	return Report{Name: name, Path: path, CreatedAt: now, Rows: built, Summary: sum}, nil
}

// createExclusive opens a report file that did not exist before.
// A name collision (two reports in the same second) gets a numeric suffix.
func (g *Generator) createExclusive(now time.Time) (*os.File, string, error) {
	base := reportPrefix + now.Format(nameLayout)
	for i := 0; i < maxSuffix; i++ {
		name := base + reportExt
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, reportExt)
		}
		f, err := os.OpenFile(filepath.Join(g.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("reporting: create %s: %w", name, err)
		}
	}
	return nil, "", fmt.Errorf("reporting: too many reports for %s", base)
}

func writeCSV(f *os.File, rows []Row) error {
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		ts := ""
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.UTC().Format(time.RFC3339)
		}
		if err := w.Write([]string{r.ClientID, r.Name, r.Phone, r.Result, strconv.Itoa(r.DurationSeconds), ts}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the snapshots in the report dir, newest first.
func (g *Generator) List(ctx context.Context) ([]Snapshot, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Snapshot{}, nil
		}
		return nil, err
	}
	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !validName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Name: e.Name(), SizeBytes: info.Size(), CreatedAt: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Path resolves a snapshot name to a file path inside the report dir.
func (g *Generator) Path(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	p := filepath.Join(g.dir, name)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return p, nil
}

func validName(name string) bool {
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	return strings.HasPrefix(name, reportPrefix) && strings.HasSuffix(name, reportExt)
}
