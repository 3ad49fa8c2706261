package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

func maxIDSQL() string {
	return fmt.Sprintf("SELECT COALESCE(MAX(id), -1) FROM %s", TableName)
}

func lookupSQL(d Dialect) string {
	return fmt.Sprintf("SELECT id, first_name, last_name, signup_date FROM %s WHERE id = %s",
		TableName, d.Placeholder(1))
}

// lookup is the outcome of one point lookup. A key with no row is still a
// successful, timed lookup.
type lookup struct {
	Key     int64
	Found   bool
	Elapsed time.Duration
	Err     error
}

// SelectRunner runs Selects point lookups on keys drawn uniformly from
// [0, MAX(id)]. Failed lookups are counted and discarded, never retried.
type SelectRunner struct {
	Session *SessionManager
	Selects int
	Timeout time.Duration
	Tracker Tracker
	Log     zerolog.Logger
	Rand    *rand.Rand

	// OnKey, when set, sees every sampled key.
	OnKey func(key int64)
}

func (r *SelectRunner) Run(ctx context.Context) (*SelectResult, error) {
	res := &SelectResult{Requested: r.Selects, MaxID: -1, Latency: NewLatencyStats()}

	conn, err := r.Session.Conn()
	if err != nil {
		return res, fmt.Errorf("%w: select benchmark: %w", ErrExecution, err)
	}

	qctx, cancel := withTimeout(ctx, r.Timeout)
	err = conn.QueryRow(qctx, maxIDSQL()).Scan(&res.MaxID)
	cancel()
	if err != nil {
		r.Log.Error().Err(err).Msg("unable to fetch MAX id value")
		return res, fmt.Errorf("%w: fetch max id: %w", ErrExecution, err)
	}
	if r.Selects == 0 {
		return res, nil
	}
	if res.MaxID < 0 {
		return res, fmt.Errorf("%w: table %s is empty, no keys to look up", ErrExecution, TableName)
	}

	pctx, cancel := withTimeout(ctx, r.Timeout)
	stmt, err := conn.Prepare(pctx, lookupSQL(r.Session.Dialect()))
	cancel()
	if err != nil {
		r.Log.Error().Err(err).Msg("SELECT statements benchmarking failed")
		return res, fmt.Errorf("%w: prepare lookup: %w", ErrExecution, err)
	}
	defer stmt.Close(context.WithoutCancel(ctx))

	rng := r.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	tracker := trackerOrNop(r.Tracker)
	tracker.Start("SELECT", r.Selects)
	defer tracker.Finish()

	start := time.Now()
	for k := 0; k < r.Selects; k++ {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%w: select benchmark interrupted: %w", ErrExecution, err)
		}

		l := r.lookup(ctx, stmt, rng.Int63n(res.MaxID+1))
		switch {
		case l.Err != nil:
			res.LookupsFailed++
			r.Log.Debug().Err(l.Err).Int64("key", l.Key).Msg("lookup skipped")
		case l.Found:
			res.StatementsMade++
			res.Latency.Record(l.Elapsed)
		default:
			res.StatementsMade++
			res.KeysMissing++
			res.Latency.Record(l.Elapsed)
		}
		tracker.Increment()

		if l.Err != nil && connClosed(conn) {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%w: select benchmark: %w: session connection closed", ErrExecution, ErrConnection)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (r *SelectRunner) lookup(ctx context.Context, stmt Stmt, key int64) lookup {
	if r.OnKey != nil {
		r.OnKey(key)
	}

	var s Student
	lctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	begin := time.Now()
	err := stmt.QueryRow(lctx, key).Scan(&s.ID, &s.FirstName, &s.LastName, &s.SignupDate)
	l := lookup{Key: key, Elapsed: time.Since(begin), Found: err == nil}
	if err != nil && !errors.Is(err, ErrNoRows) {
		l.Err = fmt.Errorf("%w: lookup id %d: %w", ErrStatement, key, err)
	}
	return l
}
