// Package sqldb adapts database/sql drivers to the bench connection model:
// one *sql.DB limited to a single connection per session.
package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"stmtbench/bench"
)

const pingTimeout = 10 * time.Second

// Open connects with driverName/dsn.
func Open(ctx context.Context, driverName, dsn string) (*Conn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return single(ctx, db)
}

// OpenConnector is Open for drivers that expose a driver.Connector.
func OpenConnector(ctx context.Context, connector driver.Connector) (*Conn, error) {
	return single(ctx, sql.OpenDB(connector))
}

// single caps the pool at one connection and establishes it. Statements are
// prepared on the pool, so a transaction running on that connection reuses
// them instead of preparing again.
func single(ctx context.Context, db *sql.DB) (*Conn, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Conn{db: db}, nil
}

type Conn struct {
	db *sql.DB
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) bench.Row {
	return row{c.db.QueryRowContext(ctx, query, args...)}
}

func (c *Conn) Prepare(ctx context.Context, query string) (bench.Stmt, error) {
	s, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stmt{s: s}, nil
}

func (c *Conn) Begin(ctx context.Context) (bench.Tx, error) {
	t, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{t: t}, nil
}

func (c *Conn) Close(context.Context) error {
	return c.db.Close()
}

type stmt struct {
	s *sql.Stmt
}

func (s *stmt) Exec(ctx context.Context, args ...any) error {
	_, err := s.s.ExecContext(ctx, args...)
	return err
}

func (s *stmt) QueryRow(ctx context.Context, args ...any) bench.Row {
	return row{s.s.QueryRowContext(ctx, args...)}
}

func (s *stmt) Close(context.Context) error {
	return s.s.Close()
}

type tx struct {
	t *sql.Tx
}

// Stmt returns a transaction-specific statement. It is closed together
// with the transaction.
func (t *tx) Stmt(ctx context.Context, s bench.Stmt) bench.Stmt {
	return &stmt{s: t.t.StmtContext(ctx, s.(*stmt).s)}
}

func (t *tx) Commit(context.Context) error {
	return t.t.Commit()
}

func (t *tx) Rollback(context.Context) error {
	err := t.t.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type row struct {
	r *sql.Row
}

func (r row) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return bench.ErrNoRows
	}
	return err
}
