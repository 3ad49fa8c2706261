package my

import (
	"context"
	"strings"
	"time"

	"stmtbench/bench"
	"stmtbench/sqldb"

	"github.com/go-sql-driver/mysql"
)

type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Dialer opens go-sql-driver/mysql connections through sqldb. An empty
// database name connects without selecting a schema.
type Dialer struct {
	Timeout time.Duration
}

func (d Dialer) Dialect() bench.Dialect { return Dialect{} }

func (d Dialer) Dial(ctx context.Context, ep bench.ServerEndpoint, database string) (bench.Conn, error) {
	connector, err := mysql.NewConnector(d.Config(ep, database))
	if err != nil {
		return nil, err
	}
	c, err := sqldb.OpenConnector(ctx, connector)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d Dialer) Config(ep bench.ServerEndpoint, database string) *mysql.Config {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg := mysql.NewConfig()
	cfg.User = ep.User
	cfg.Passwd = ep.Password
	cfg.Net = "tcp"
	cfg.Addr = ep.Address
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.AllowCleartextPasswords = true
	cfg.Timeout = timeout
	return cfg
}
