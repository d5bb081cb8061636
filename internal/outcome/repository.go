package outcome

import (
	"context"
	"sort"
	"sync"
)

// Repository is the durable outcome table keyed by canonical phone.
//
// PutIfPrecedence must be atomic: it stores o when no record exists for
// o.Phone or when o.Result supersedes the stored result, and returns the
// record that is stored after the call.
type Repository interface {
	Get(ctx context.Context, phone string) (Outcome, bool, error)
	PutIfPrecedence(ctx context.Context, o Outcome) (stored Outcome, accepted bool, err error)
	List(ctx context.Context) ([]Outcome, error)
	Reset(ctx context.Context) error
}

// MemoryRepo is a non-durable repository for tests and dry runs.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Outcome
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Outcome{}} }

func (r *MemoryRepo) Get(ctx context.Context, phone string) (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[phone]
	return o, ok, nil
}

func (r *MemoryRepo) PutIfPrecedence(ctx context.Context, o Outcome) (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return putIfPrecedence(r.rows, o)
}

func (r *MemoryRepo) List(ctx context.Context) ([]Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedRows(r.rows), nil
}

func (r *MemoryRepo) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = map[string]Outcome{}
	return nil
}

func putIfPrecedence(rows map[string]Outcome, o Outcome) (Outcome, bool, error) {
	if prev, ok := rows[o.Phone]; ok && !Supersedes(o.Result, prev.Result) {
		return prev, false, nil
	}
	rows[o.Phone] = o
	return o, true, nil
}

func sortedRows(rows map[string]Outcome) []Outcome {
	out := make([]Outcome, 0, len(rows))
	for _, o := range rows {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out
}
