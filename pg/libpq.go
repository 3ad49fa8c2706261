package pg

import (
	"context"
	"time"

	"stmtbench/bench"
	"stmtbench/sqldb"

	"github.com/lib/pq"
)

// LibPQDialer reaches PostgreSQL through lib/pq and database/sql instead of
// the native pgx protocol implementation.
type LibPQDialer struct {
	SSLMode string
	AdminDB string
	Timeout time.Duration
}

func (d LibPQDialer) Dialect() bench.Dialect { return libpqDialect{} }

func (d LibPQDialer) Dial(ctx context.Context, ep bench.ServerEndpoint, database string) (bench.Conn, error) {
	dsn := DSN(ep, Dialer{AdminDB: d.AdminDB}.database(database), d.SSLMode)
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, connectTimeout(d.Timeout))
	defer cancel()

	c, err := sqldb.OpenConnector(cctx, connector)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type libpqDialect struct{ Dialect }

func (libpqDialect) Name() string { return "pq" }

func (libpqDialect) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }
