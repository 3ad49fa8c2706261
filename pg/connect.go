package pg

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"stmtbench/bench"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultAdminDB        = "postgres"
	DefaultConnectTimeout = 10 * time.Second
)

// Dialect is the PostgreSQL flavour of bench.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Dialect) QuoteIdent(name string) string { return pgx.Identifier{name}.Sanitize() }

// Dialer opens native pgx connections, one per session.
type Dialer struct {
	SSLMode string
	// AdminDB is the maintenance database used for CREATE/DROP DATABASE.
	AdminDB string
	// Timeout bounds connection setup, DefaultConnectTimeout when zero.
	Timeout time.Duration
}

func (d Dialer) Dialect() bench.Dialect { return Dialect{} }

func (d Dialer) Dial(ctx context.Context, ep bench.ServerEndpoint, database string) (bench.Conn, error) {
	config, err := pgx.ParseConfig(DSN(ep, d.database(database), d.SSLMode))
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout(d.Timeout))
	defer cancel()

	c, err := pgx.ConnectConfig(cctx, config)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(cctx); err != nil {
		c.Close(ctx)
		return nil, err
	}
	return &conn{c: c}, nil
}

func connectTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultConnectTimeout
	}
	return d
}

func (d Dialer) database(name string) string {
	if name != "" {
		return name
	}
	if d.AdminDB != "" {
		return d.AdminDB
	}
	return DefaultAdminDB
}

// DSN builds a postgres:// URL for the endpoint. address is host[:port].
func DSN(ep bench.ServerEndpoint, database, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(ep.User, ep.Password),
		Host:     ep.Address,
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

var stmtSeq atomic.Uint64

type conn struct {
	c *pgx.Conn
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.c.Exec(ctx, query, args...)
	return err
}

func (c *conn) QueryRow(ctx context.Context, query string, args ...any) bench.Row {
	return row{c.c.QueryRow(ctx, query, args...)}
}

// Prepare creates a named server-side statement. Exec and QueryRow refer to
// it by name, so only the bind/execute round trip is measured.
func (c *conn) Prepare(ctx context.Context, query string) (bench.Stmt, error) {
	name := fmt.Sprintf("stmtbench_%d", stmtSeq.Add(1))
	if _, err := c.c.Prepare(ctx, name, query); err != nil {
		return nil, err
	}
	return &stmt{c: c.c, q: c.c, name: name}, nil
}

func (c *conn) Begin(ctx context.Context) (bench.Tx, error) {
	t, err := c.c.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &tx{t: t}, nil
}

func (c *conn) Close(ctx context.Context) error {
	return c.c.Close(ctx)
}

// IsClosed reports a connection pgx gave up on. A statement cancelled by
// its context deadline closes the connection.
func (c *conn) IsClosed() bool {
	return c.c.IsClosed()
}

// querier is satisfied by both *pgx.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type stmt struct {
	c    *pgx.Conn
	q    querier
	name string
}

func (s *stmt) Exec(ctx context.Context, args ...any) error {
	_, err := s.q.Exec(ctx, s.name, args...)
	return err
}

func (s *stmt) QueryRow(ctx context.Context, args ...any) bench.Row {
	return row{s.q.QueryRow(ctx, s.name, args...)}
}

func (s *stmt) Close(ctx context.Context) error {
	if s.c.IsClosed() {
		return nil
	}
	return s.c.Deallocate(ctx, s.name)
}

type tx struct {
	t pgx.Tx
}

func (t *tx) Stmt(_ context.Context, s bench.Stmt) bench.Stmt {
	ps := s.(*stmt)
	return &stmt{c: ps.c, q: t.t, name: ps.name}
}

func (t *tx) Commit(ctx context.Context) error {
	return t.t.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	err := t.t.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

type row struct {
	r pgx.Row
}

func (r row) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return bench.ErrNoRows
	}
	return err
}
