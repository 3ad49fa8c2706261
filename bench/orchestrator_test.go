package bench

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(srv *fakeServer, cfg BenchmarkConfig) *Orchestrator {
	d := fakeDialer{srv}
	return &Orchestrator{
		Server:    NewServerLifecycleManager(d, ServerEndpoint{}, zerolog.Nop()),
		Session:   NewSessionManager(d, ServerEndpoint{}, zerolog.Nop()),
		Config:    cfg,
		Database:  "bench",
		DDL:       testDDL,
		DropAfter: true,
		RunID:     "run-1",
		Rand:      rand.New(rand.NewSource(42)),
		Log:       zerolog.Nop(),
	}
}

func TestOrchestratorFullRun(t *testing.T) {
	srv := newFakeServer()
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 3, StatementsPerTransaction: 4, Selects: 25})

	rep, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rep.Insert)
	require.NotNil(t, rep.Select)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, TableName, rep.Table)
	assert.Equal(t, 12, rep.Insert.StatementsCommitted)
	assert.Equal(t, int64(11), rep.Select.MaxID)
	assert.Equal(t, 25, rep.Select.StatementsMade)
	assert.False(t, rep.Finished.Before(rep.Started))

	assert.NotContains(t, srv.databases, "bench")
	assert.Empty(t, o.Session.CurrentDatabase())
	events := srv.Events()
	assert.Equal(t, `exec:DROP DATABASE "bench"`, events[len(events)-2])
}

func TestOrchestratorDropsAfterSchemaFailure(t *testing.T) {
	srv := newFakeServer()
	srv.execErr = func(q string) error {
		if strings.HasPrefix(q, "CREATE TABLE") {
			return errors.New("syntax error at or near")
		}
		return nil
	}
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 1, StatementsPerTransaction: 1, Selects: 1})

	rep, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrSchema)
	assert.Nil(t, rep.Insert)
	assert.Nil(t, rep.Select)
	assert.NotContains(t, srv.databases, "bench")
}

func TestOrchestratorDropsAfterSelectFailure(t *testing.T) {
	srv := newFakeServer()
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 0, StatementsPerTransaction: 5, Selects: 10})

	rep, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrExecution)
	require.NotNil(t, rep.Insert)
	require.NotNil(t, rep.Select)
	assert.Equal(t, int64(-1), rep.Select.MaxID)
	assert.NotContains(t, srv.databases, "bench")
}

func TestOrchestratorDropFailureIsSwallowed(t *testing.T) {
	srv := newFakeServer()
	srv.execErr = func(q string) error {
		if strings.HasPrefix(q, "DROP DATABASE") {
			return errors.New("must be owner of database")
		}
		return nil
	}
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 1, StatementsPerTransaction: 1, Selects: 1})

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, srv.databases, "bench")
	assert.Zero(t, srv.open["bench"])
}

func TestOrchestratorKeepsDatabase(t *testing.T) {
	srv := newFakeServer()
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 2, StatementsPerTransaction: 2, Selects: 4})
	o.DropAfter = false

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, srv.databases, "bench")
	assert.Len(t, srv.rowIDs("bench"), 4)
	assert.Zero(t, srv.open["bench"])
	assert.NotContains(t, srv.Events(), `exec:DROP DATABASE "bench"`)
}

func TestOrchestratorCreateFailureDropsLeftoverDatabase(t *testing.T) {
	srv := newFakeServer()
	srv.databases["bench"] = &fakeDB{tables: map[string]bool{}, rows: map[int64]Student{}}
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 1, StatementsPerTransaction: 1, Selects: 1})

	rep, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrProvisioning)
	assert.Contains(t, err.Error(), "already exists")
	assert.Nil(t, rep.Insert)
	assert.NotContains(t, srv.databases, "bench")
	assert.NotContains(t, srv.Events(), "dial:bench")
	assert.Equal(t, []string{
		"dial:", `exec:CREATE DATABASE "bench"`, "close:",
		"dial:", `exec:DROP DATABASE "bench"`, "close:",
	}, srv.Events())
}

func TestOrchestratorCreateFailureKeepsDatabaseWhenAsked(t *testing.T) {
	srv := newFakeServer()
	srv.databases["bench"] = &fakeDB{tables: map[string]bool{}, rows: map[int64]Student{}}
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 1, StatementsPerTransaction: 1, Selects: 1})
	o.DropAfter = false

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrProvisioning)
	assert.Contains(t, srv.databases, "bench")
}

func TestOrchestratorCreateAndDropBothFail(t *testing.T) {
	srv := newFakeServer()
	dialErr := errors.New("connection refused")
	srv.dialErr = func(string) error { return dialErr }
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 1, StatementsPerTransaction: 1, Selects: 1})

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrProvisioning)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, []string{"dial:", "dial:"}, srv.Events())
}

func TestOrchestratorLeavesRunErrorToCaller(t *testing.T) {
	srv := newFakeServer()
	srv.execErr = func(q string) error {
		if strings.HasPrefix(q, "CREATE TABLE") {
			return errors.New("syntax error")
		}
		return nil
	}
	var buf bytes.Buffer
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 1, StatementsPerTransaction: 1, Selects: 1})
	o.Log = zerolog.New(&buf)

	_, err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrSchema)
	assert.NotContains(t, buf.String(), err.Error())
}

func TestOrchestratorUsesTrackers(t *testing.T) {
	srv := newFakeServer()
	o := newOrchestrator(srv, BenchmarkConfig{Transactions: 2, StatementsPerTransaction: 1, Selects: 3})
	var trackers []*countingTracker
	o.NewTracker = func() Tracker {
		tr := &countingTracker{}
		trackers = append(trackers, tr)
		return tr
	}

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, trackers, 2)
	assert.Equal(t, "INSERT", trackers[0].label)
	assert.Equal(t, 2, trackers[0].increments)
	assert.Equal(t, "SELECT", trackers[1].label)
	assert.Equal(t, 3, trackers[1].increments)
}
