package bench

import (
	"context"
	"time"
)

// Dialer opens single connections to a database server. An empty database
// name asks for an administrative connection that is not scoped to the
// benchmark database.
type Dialer interface {
	Dial(ctx context.Context, ep ServerEndpoint, database string) (Conn, error)
	Dialect() Dialect
}

// Dialect covers the SQL text differences between servers.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	QuoteIdent(name string) string
}

type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) Row
	Prepare(ctx context.Context, query string) (Stmt, error)
	Begin(ctx context.Context) (Tx, error)
	Close(ctx context.Context) error
}

type Stmt interface {
	Exec(ctx context.Context, args ...any) error
	QueryRow(ctx context.Context, args ...any) Row
	Close(ctx context.Context) error
}

// Tx is an explicit transaction. Rollback after Commit is allowed and its
// error is meaningless.
type Tx interface {
	// Stmt binds a statement prepared on the owning Conn to this transaction.
	Stmt(ctx context.Context, s Stmt) Stmt
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Row.Scan reports ErrNoRows when the query matched nothing.
type Row interface {
	Scan(dest ...any) error
}

// withTimeout bounds a single blocking call. Zero means no bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// ClosedReporter is implemented by connections that notice when the server
// side has gone away, e.g. after a cancelled statement.
type ClosedReporter interface {
	IsClosed() bool
}

func connClosed(c Conn) bool {
	r, ok := c.(ClosedReporter)
	return ok && r.IsClosed()
}
