package bench

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Orchestrator sequences a whole run: create the benchmark database, connect,
// create the table, run the insert and select workloads, and drop the
// database again.
type Orchestrator struct {
	Server  *ServerLifecycleManager
	Session *SessionManager
	Config  BenchmarkConfig

	Database  string
	DDL       string
	DropAfter bool
	Timeout   time.Duration
	RunID     string

	// NewTracker returns a progress tracker per workload. Optional.
	NewTracker func() Tracker
	Rand       *rand.Rand
	Log        zerolog.Logger
}

// Run returns the report of the phases that completed together with the first
// setup or execution error, which is left to the caller to report. Dropping
// the database is attempted on every path when DropAfter is set; a failed
// drop is logged and never returned.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	log := o.Log.With().Str("run_id", o.RunID).Logger()
	rep := &Report{
		RunID:    o.RunID,
		Database: o.Database,
		Config:   o.Config,
		Started:  time.Now(),
	}
	defer func() { rep.Finished = time.Now() }()

	log.Info().Str("database", o.Database).Msg("benchmarks initializing")
	defer o.cleanup(ctx, log)
	if err := o.Server.CreateDatabase(ctx, o.Database); err != nil {
		return rep, err
	}
	return rep, o.run(ctx, log, rep)
}

func (o *Orchestrator) run(ctx context.Context, log zerolog.Logger, rep *Report) error {
	if err := o.Session.Connect(ctx, o.Database); err != nil {
		return err
	}

	schema := &SchemaProvisioner{Session: o.Session, Log: log}
	table, err := schema.CreateTable(ctx, o.DDL)
	rep.Table = table
	if err != nil {
		return err
	}

	ins := &InsertRunner{
		Session:                  o.Session,
		Transactions:             o.Config.Transactions,
		StatementsPerTransaction: o.Config.StatementsPerTransaction,
		Timeout:                  o.Timeout,
		Tracker:                  o.tracker(),
		Log:                      log,
	}
	rep.Insert, err = ins.Run(ctx)
	if err != nil {
		return err
	}

	sel := &SelectRunner{
		Session: o.Session,
		Selects: o.Config.Selects,
		Timeout: o.Timeout,
		Tracker: o.tracker(),
		Log:     log,
		Rand:    o.Rand,
	}
	rep.Select, err = sel.Run(ctx)
	return err
}

func (o *Orchestrator) cleanup(ctx context.Context, log zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if !o.DropAfter {
		if err := o.Session.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("disconnect failed")
		}
		log.Info().Str("database", o.Database).Msg("benchmark database kept")
		return
	}
	if err := o.Server.DropDatabase(ctx, o.Database, o.Session); err != nil {
		log.Error().Err(err).Str("database", o.Database).Msg("cleanup failed, benchmark database left on server")
	}
}

func (o *Orchestrator) tracker() Tracker {
	if o.NewTracker == nil {
		return nil
	}
	return o.NewTracker()
}
