package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"stmtbench/bench"
	"stmtbench/config"
	"stmtbench/my"
	"stmtbench/pg"
	"stmtbench/schema"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"dbms-url":          config.KeyURL,
	"dbms-user":         config.KeyUser,
	"user-pw":           config.KeyPassword,
	"transactions":      config.KeyTransactions,
	"statements":        config.KeyStatementsPerTx,
	"selects":           config.KeySelects,
	"driver":            config.KeyDriver,
	"db-name":           config.KeyBenchmarkDB,
	"admin-db":          config.KeyAdminDB,
	"statement-timeout": config.KeyStatementTimeout,
	"sslmode":           config.KeySSLMode,
	"connect-timeout":   config.KeyConnectTimeout,
}

func main() {
	app := &cli.App{
		Name:    "stmtbench",
		Usage:   "statement latency benchmark for relational databases",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "configuration.yaml", Usage: "flat key/value YAML configuration file"},
			&cli.StringFlag{Name: "dbms-url", Usage: "server address host[:port]", EnvVars: []string{"STMTBENCH_DBMS_URL"}},
			&cli.StringFlag{Name: "dbms-user", Usage: "user for server authentication", EnvVars: []string{"STMTBENCH_DBMS_USER"}},
			&cli.StringFlag{Name: "user-pw", Usage: "password for server authentication", EnvVars: []string{"STMTBENCH_USER_PW"}},
			&cli.StringFlag{Name: "transactions", Usage: "number of INSERT transactions", EnvVars: []string{"STMTBENCH_NO_TRANSACTIONS"}},
			&cli.StringFlag{Name: "statements", Usage: "INSERT statements per transaction", EnvVars: []string{"STMTBENCH_NO_STATEMENTS_PER_TRANSACTION"}},
			&cli.StringFlag{Name: "selects", Usage: "number of SELECT point lookups", EnvVars: []string{"STMTBENCH_NO_SELECT_STATEMENTS"}},
			&cli.StringFlag{Name: "driver", Usage: "postgres, pq or mysql", EnvVars: []string{"STMTBENCH_DRIVER"}},
			&cli.StringFlag{Name: "db-name", Usage: "name of the ephemeral benchmark database", EnvVars: []string{"STMTBENCH_BENCHMARK_DB"}},
			&cli.StringFlag{Name: "admin-db", Usage: "maintenance database for PostgreSQL administrative connections", EnvVars: []string{"STMTBENCH_ADMIN_DB"}},
			&cli.StringFlag{Name: "statement-timeout", Usage: "bound every blocking call, e.g. 5s (default: none); a timed out statement may close the session, which ends the run", EnvVars: []string{"STMTBENCH_STATEMENT_TIMEOUT"}},
			&cli.StringFlag{Name: "sslmode", Usage: "sslmode for the postgres and pq drivers", EnvVars: []string{"STMTBENCH_SSLMODE"}},
			&cli.StringFlag{Name: "connect-timeout", Usage: "bound on opening a connection, e.g. 3s (default: 10s for PostgreSQL, 30s for MySQL)", EnvVars: []string{"STMTBENCH_CONNECT_TIMEOUT"}},
			&cli.BoolFlag{Name: "keep-db", Usage: "do not drop the benchmark database afterwards"},
			&cli.StringFlag{Name: "ddl", Usage: "file with the table DDL (default: built-in Student table)"},
			&cli.StringFlag{Name: "report", Usage: "write the run report as YAML to this file"},
			&cli.BoolFlag{Name: "progress", Usage: "show progress bars"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn, error or disabled"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := setupLogging(c.String("log-level"))
	if err != nil {
		return err
	}

	overrides := map[string]string{}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.Bool("keep-db") {
		overrides[config.KeyDropAfterTest] = "false"
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return err
	}
	ddl, err := schema.Load(c.String("ddl"))
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	runID := uuid.NewString()
	log.Info().
		Str("run_id", runID).
		Str("driver", string(cfg.Driver)).
		Str("dbms_url", cfg.URL).
		Str("dbms_user", cfg.User).
		Int("transactions", cfg.Transactions).
		Int("statements_per_transaction", cfg.StatementsPerTransaction).
		Int("selects", cfg.Selects).
		Msg("configuration loaded")

	dialer := newDialer(cfg)
	orch := &bench.Orchestrator{
		Server:    bench.NewServerLifecycleManager(dialer, cfg.Endpoint(), log),
		Session:   bench.NewSessionManager(dialer, cfg.Endpoint(), log),
		Config:    cfg.Benchmark(),
		Database:  cfg.BenchmarkDB,
		DDL:       ddl,
		DropAfter: cfg.DropAfterTest,
		Timeout:   cfg.StatementTimeout,
		RunID:     runID,
		Log:       log,
	}
	if c.Bool("progress") {
		orch.NewTracker = newProgressTracker
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	rep, runErr := orch.Run(ctx)
	if rep.Insert != nil {
		bench.PrintInsert(os.Stdout, rep.Insert)
	}
	if rep.Select != nil {
		bench.PrintSelect(os.Stdout, rep.Select)
	}
	if path := c.String("report"); path != "" {
		if err := writeReport(path, rep); err != nil {
			log.Error().Err(err).Str("path", path).Msg("report writing failed")
		}
	}
	return runErr
}

func newDialer(cfg config.Config) bench.Dialer {
	switch cfg.Driver {
	case config.DriverMySQL:
		return my.Dialer{Timeout: cfg.ConnectTimeout}
	case config.DriverLibPQ:
		return pg.LibPQDialer{SSLMode: cfg.SSLMode, AdminDB: cfg.AdminDB, Timeout: cfg.ConnectTimeout}
	default:
		return pg.Dialer{SSLMode: cfg.SSLMode, AdminDB: cfg.AdminDB, Timeout: cfg.ConnectTimeout}
	}
}

func setupLogging(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("%w: log-level: %w", config.ErrConfig, err)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(lvl)
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).With().Timestamp().Logger(), nil
}

func writeReport(path string, rep *bench.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("os.Create failed: %w", err)
	}
	defer f.Close()
	return bench.WriteYAML(f, rep)
}
