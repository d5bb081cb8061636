package outcome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"outbound-dialer/pkg/utils"
)

// Dialect selects placeholder syntax for SQLRepo.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLRepo stores outcomes in a call_outcomes table.
//
// The precedence guard is enforced by the upsert itself
// (ON CONFLICT ... DO UPDATE ... WHERE stored precedence < new precedence),
// so the check-then-write stays atomic across processes sharing the database.
type SQLRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLRepo(db *sql.DB, dialect Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect}
}

const schemaOutcomes = `
CREATE TABLE IF NOT EXISTS call_outcomes (
  phone            TEXT PRIMARY KEY,
  name             TEXT NOT NULL,
  result           TEXT NOT NULL,
  precedence       INTEGER NOT NULL,
  duration_seconds INTEGER NOT NULL,
  recorded_at      BIGINT NOT NULL
)
`

// EnsureSchema creates the outcome table if it is missing.
func (r *SQLRepo) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return errors.New("outcome: sql db is nil")
	}
	_, err := r.db.ExecContext(ctx, schemaOutcomes)
	return err
}

// bind rewrites ? placeholders to $n for Postgres.
func (r *SQLRepo) bind(q string) string {
	if r.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(s rowScanner) (Outcome, error) {
	var (
		o      Outcome
		result string
		atNano int64
	)
	if err := s.Scan(&o.Phone, &o.Name, &result, &o.DurationSeconds, &atNano); err != nil {
		return Outcome{}, err
	}
	o.Result = Kind(result)
	o.Timestamp = time.Unix(0, atNano).UTC()
	return o, nil
}

const selectOutcome = `
SELECT phone, name, result, duration_seconds, recorded_at
FROM call_outcomes
WHERE phone = ?
`

func (r *SQLRepo) Get(ctx context.Context, phone string) (Outcome, bool, error) {
	o, err := scanOutcome(r.db.QueryRowContext(ctx, r.bind(selectOutcome), phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, err
	}
	return o, true, nil
}

const upsertOutcome = `
INSERT INTO call_outcomes (phone, name, result, precedence, duration_seconds, recorded_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (phone) DO UPDATE SET
  name = EXCLUDED.name,
  result = EXCLUDED.result,
  precedence = EXCLUDED.precedence,
  duration_seconds = EXCLUDED.duration_seconds,
  recorded_at = EXCLUDED.recorded_at
WHERE call_outcomes.precedence < EXCLUDED.precedence
`

func (r *SQLRepo) PutIfPrecedence(ctx context.Context, o Outcome) (Outcome, bool, error) {
	var (
		stored   Outcome
		accepted bool
	)
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.bind(upsertOutcome),
			o.Phone,
			o.Name,
			string(o.Result),
			o.Result.Precedence(),
			o.DurationSeconds,
			o.Timestamp.UnixNano(),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		accepted = n > 0

		stored, err = scanOutcome(tx.QueryRowContext(ctx, r.bind(selectOutcome), o.Phone))
		return err
	})
	if err != nil {
		return Outcome{}, false, err
	}
	return stored, accepted, nil
}

func (r *SQLRepo) List(ctx context.Context) ([]Outcome, error) {
	const q = `
SELECT phone, name, result, duration_seconds, recorded_at
FROM call_outcomes
ORDER BY phone
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *SQLRepo) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM call_outcomes`)
	return err
}
