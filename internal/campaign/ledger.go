package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"outbound-dialer/internal/phone"
	"outbound-dialer/pkg/logger"
	"outbound-dialer/pkg/utils"
)

// TerminalLedger remembers which phones already produced a terminal event in
// a run. First returns true exactly once per (run, phone).
type TerminalLedger interface {
	First(ctx context.Context, runID string, p phone.Canonical) bool
}

type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: map[string]struct{}{}}
}

func (l *MemoryLedger) First(ctx context.Context, runID string, p phone.Canonical) bool {
	key := runID + "|" + p
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}

const (
	defaultLedgerPrefix = "dialer:terminal:"
	defaultLedgerTTL    = 7 * 24 * time.Hour
)

// RedisLedger keeps the per-run set in Redis so several webhook replicas
// share one view. Every mark is mirrored locally; when Redis errors the local
// mirror answers, so a duplicate is still caught by the replica that saw the
// original.
type RedisLedger struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	local  *MemoryLedger
}

func NewRedisLedger(rdb *redis.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb, prefix: defaultLedgerPrefix, ttl: defaultLedgerTTL, local: NewMemoryLedger()}
}

func (l *RedisLedger) First(ctx context.Context, runID string, p phone.Canonical) bool {
	local := l.local.First(ctx, runID, p)
	first, err := utils.MarkOnce(ctx, l.rdb, l.prefix+runID, p, l.ttl)
	if err != nil {
		logger.From(ctx).Warn("terminal ledger unavailable, using local view", "run_id", runID, "phone", p, "err", err)
		return local
	}
	return first
}
