package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/dispatch"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/pkg/logger"
)

var (
	ErrNoUpload       = errors.New("campaign: upload contacts first")
	ErrNoContacts     = errors.New("campaign: no dialable contacts")
	ErrAlreadyRunning = errors.New("campaign: already running")
	ErrNotRunning     = errors.New("campaign: not running")
)

// Reporter writes report snapshots. reporting.Generator implements it.
type Reporter interface {
	Generate(ctx context.Context, runID string, rows []contacts.Contact, outs []outcome.Outcome) (reporting.Report, error)
}

// Manager owns the uploaded contact list and the current Run.
//
// Upload replaces the contact list, clears the outcome store and drops the
// current run. Start builds a fresh Run (new id, directory, tracker and
// dispatcher) and dials the first contact.
type Manager struct {
	mu   sync.Mutex
	rows []contacts.Contact
	run  *Run

	store    *outcome.Store
	ledger   TerminalLedger
	dialer   dispatch.Dialer
	reporter Reporter
	from     string
	log      *slog.Logger

	NewID func() string
	Now   func() time.Time
}

type ManagerConfig struct {
	Store    *outcome.Store
	Ledger   TerminalLedger
	Dialer   dispatch.Dialer
	Reporter Reporter
	// From is the caller id placed calls are made from.
	From   string
	Logger *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    cfg.Store,
		ledger:   ledger,
		dialer:   cfg.Dialer,
		reporter: cfg.Reporter,
		from:     cfg.From,
		log:      log,
		NewID:    uuid.NewString,
		Now:      time.Now,
	}
}

// Ledger is shared with the Engine so dropped dispatches and terminal
// statuses are counted against the same set.
func (m *Manager) Ledger() TerminalLedger { return m.ledger }

// Current implements RunSource.
func (m *Manager) Current() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run
}

type UploadResult struct {
	Rows       int `json:"count"`
	Accepted   int `json:"accepted"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

func (m *Manager) Upload(ctx context.Context, rows []contacts.Contact) (UploadResult, error) {
	if len(rows) == 0 {
		return UploadResult{}, ErrNoContacts
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.busy(); err != nil {
		return UploadResult{}, err
	}
	if err := m.store.Reset(ctx); err != nil {
		return UploadResult{}, fmt.Errorf("campaign: reset outcomes: %w", err)
	}

	dir := contacts.NewDirectory(rows)
	skipped, dups := dir.Stats()
	m.rows = append([]contacts.Contact(nil), rows...)
	m.run = nil

	res := UploadResult{Rows: len(rows), Accepted: dir.Len(), Skipped: skipped, Duplicates: dups}
	logger.From(ctx).Info("contacts uploaded", "rows", res.Rows, "accepted", res.Accepted, "skipped", skipped, "duplicates", dups)
	return res, nil
}

// Start begins a new run over the uploaded contacts.
func (m *Manager) Start(ctx context.Context) (State, *Run, error) {
	m.mu.Lock()
	if m.rows == nil {
		m.mu.Unlock()
		return State{}, nil, ErrNoUpload
	}
	if err := m.busy(); err != nil {
		m.mu.Unlock()
		return State{}, nil, err
	}
	dir := contacts.NewDirectory(m.rows)
	if dir.Len() == 0 {
		m.mu.Unlock()
		return State{}, nil, ErrNoContacts
	}

	run := newRun(m.NewID(), m.Now().UTC(), dir)
	run.Tracker = NewTracker(func() { m.complete(run) })
	run.Dispatcher = dispatch.NewDispatcher(run.ID, m.from, m.dialer, dir)
	run.Dispatcher.OnDropped = func(ctx context.Context, item contacts.QueueItem, err error) {
		if m.ledger.First(ctx, run.ID, item.Phone) {
			run.Tracker.Increment()
		}
	}
	run.Tracker.Start(dir.Len())
	run.Dispatcher.EnqueueAll(dir.Queue())
	m.run = run
	m.mu.Unlock()

	logger.From(ctx).Info("campaign started", "run_id", run.ID, "total", dir.Len())
	run.Dispatcher.Advance(context.WithoutCancel(ctx))
	return run.Tracker.Snapshot(), run, nil
}

// busy reports whether the current run still owns the call slot: it is
// running, or it was stopped while a call is live. Caller holds m.mu.
func (m *Manager) busy() error {
	if m.run == nil {
		return nil
	}
	if m.run.Tracker.Snapshot().Running {
		return ErrAlreadyRunning
	}
	if c, ok := m.run.Dispatcher.InFlight(); ok {
		return fmt.Errorf("%w: call to %s still in flight", ErrAlreadyRunning, c.To)
	}
	return nil
}

// Stop prevents further dispatches. The call in flight finishes normally.
func (m *Manager) Stop(ctx context.Context) (State, error) {
	run := m.Current()
	if run == nil || !run.Tracker.Snapshot().Running {
		return State{}, ErrNotRunning
	}
	run.Dispatcher.Stop()
	run.Tracker.Stop()
	logger.From(ctx).Info("campaign stop requested", "run_id", run.ID, "pending", run.Dispatcher.Pending())
	return run.Tracker.Snapshot(), nil
}

type Progress struct {
	RunID string `json:"run_id,omitempty"`
	State
	Uploaded int    `json:"uploaded"`
	InFlight string `json:"in_flight,omitempty"`
	Pending  int    `json:"pending"`
	Report   string `json:"report,omitempty"`
}

func (m *Manager) Progress() Progress {
	m.mu.Lock()
	run := m.run
	uploaded := len(m.rows)
	m.mu.Unlock()

	p := Progress{Uploaded: uploaded}
	if run == nil {
		return p
	}
	p.RunID = run.ID
	p.State = run.Tracker.Snapshot()
	p.Pending = run.Dispatcher.Pending()
	if c, ok := run.Dispatcher.InFlight(); ok {
		p.InFlight = c.To
	}
	p.Report = run.Report()
	return p
}

// GenerateReport writes a snapshot of the uploaded contacts joined with the
// outcomes recorded so far.
func (m *Manager) GenerateReport(ctx context.Context) (reporting.Report, error) {
	if m.reporter == nil {
		return reporting.Report{}, errors.New("campaign: reporter not configured")
	}
	m.mu.Lock()
	rows := m.rows
	runID := ""
	if m.run != nil {
		runID = m.run.ID
	}
	m.mu.Unlock()

	if rows == nil {
		return reporting.Report{}, ErrNoUpload
	}
	outs, err := m.store.ReadAll(ctx)
	if err != nil {
		return reporting.Report{}, fmt.Errorf("campaign: read outcomes: %w", err)
	}
	return m.reporter.Generate(ctx, runID, rows, outs)
}

func (m *Manager) complete(run *Run) {
	ctx := logger.With(context.Background(), m.log.With("run_id", run.ID))
	log := logger.From(ctx)
	log.Info("campaign completed", "total", run.Tracker.Snapshot().Total)

	rep, err := m.GenerateReport(ctx)
	if err != nil {
		log.Error("completion report failed", "err", err)
		return
	}
	run.setReport(rep.Name)
}
