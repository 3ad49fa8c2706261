package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Tracker is notified of workload progress.
type Tracker interface {
	Start(label string, total int)
	Increment()
	Finish()
}

type nopTracker struct{}

func (nopTracker) Start(string, int) {}
func (nopTracker) Increment()        {}
func (nopTracker) Finish()           {}

func trackerOrNop(t Tracker) Tracker {
	if t == nil {
		return nopTracker{}
	}
	return t
}

func insertSQL(d Dialect) string {
	return fmt.Sprintf("INSERT INTO %s (id, first_name, last_name, signup_date) VALUES (%s, %s, %s, %s)",
		TableName, d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4))
}

// InsertRunner runs Transactions transactions of StatementsPerTransaction
// inserts each. A failing statement rolls its transaction back and the run
// moves on to the next one.
type InsertRunner struct {
	Session                  *SessionManager
	Transactions             int
	StatementsPerTransaction int
	Timeout                  time.Duration // per blocking call, 0 = none
	Tracker                  Tracker
	Log                      zerolog.Logger

	now func() time.Time
}

func (r *InsertRunner) Run(ctx context.Context) (*InsertResult, error) {
	res := &InsertResult{
		Transactions:             r.Transactions,
		StatementsPerTransaction: r.StatementsPerTransaction,
		StatementsRequested:      r.Transactions * r.StatementsPerTransaction,
		Latency:                  NewLatencyStats(),
	}

	conn, err := r.Session.Conn()
	if err != nil {
		return res, fmt.Errorf("%w: insert benchmark: %w", ErrExecution, err)
	}

	pctx, cancel := withTimeout(ctx, r.Timeout)
	stmt, err := conn.Prepare(pctx, insertSQL(r.Session.Dialect()))
	cancel()
	if err != nil {
		r.Log.Error().Err(err).Msg("INSERT statements benchmarking failed")
		return res, fmt.Errorf("%w: prepare insert: %w", ErrExecution, err)
	}
	defer stmt.Close(context.WithoutCancel(ctx))

	tracker := trackerOrNop(r.Tracker)
	tracker.Start("INSERT", r.Transactions)
	defer tracker.Finish()

	start := time.Now()
	for i := 0; i < r.Transactions; i++ {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%w: insert benchmark interrupted: %w", ErrExecution, err)
		}

		out := r.transaction(ctx, conn, stmt, i, res.Latency)
		res.StatementsMade += out.StatementsAttempted
		if out.Committed {
			res.StatementsCommitted += out.StatementsAttempted
		} else {
			res.TransactionsFailed++
		}
		tracker.Increment()

		if !out.Committed && connClosed(conn) {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%w: insert benchmark: transaction %d: %w: session connection closed", ErrExecution, i, ErrConnection)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// transaction runs one unit of work. Every executed statement is timed into
// latency, including those of a transaction that is rolled back later.
func (r *InsertRunner) transaction(ctx context.Context, conn Conn, stmt Stmt, i int, latency *LatencyStats) TransactionOutcome {
	var out TransactionOutcome

	bctx, cancel := withTimeout(ctx, r.Timeout)
	tx, err := conn.Begin(bctx)
	cancel()
	if err != nil {
		r.Log.Debug().Err(err).Int("transaction", i).Msg("begin failed")
		return out
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	txStmt := tx.Stmt(ctx, stmt)
	for j := 0; j < r.StatementsPerTransaction; j++ {
		row := NewStudent(RowID(i, j, r.StatementsPerTransaction), r.clock())

		ectx, cancel := withTimeout(ctx, r.Timeout)
		begin := time.Now()
		err := txStmt.Exec(ectx, row.ID, row.FirstName, row.LastName, row.SignupDate)
		latency.Record(time.Since(begin))
		cancel()
		out.StatementsAttempted++

		if err != nil {
			r.rollback(ctx, tx, i, fmt.Errorf("%w: insert id %d: %w", ErrStatement, row.ID, err))
			return out
		}
	}

	cctx, cancel := withTimeout(ctx, r.Timeout)
	err = tx.Commit(cctx)
	cancel()
	if err != nil {
		r.rollback(ctx, tx, i, fmt.Errorf("%w: commit: %w", ErrStatement, err))
		return out
	}
	out.Committed = true
	return out
}

func (r *InsertRunner) rollback(ctx context.Context, tx Tx, i int, cause error) {
	ev := r.Log.Debug().Err(cause).Int("transaction", i)
	rctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil {
		ev = ev.AnErr("rollback", err)
	}
	ev.Msg("transaction rolled back")
}

func (r *InsertRunner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}
