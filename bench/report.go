package bench

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type latencyDoc struct {
	Count int      `yaml:"count"`
	SumUS float64  `yaml:"sum_us"`
	AvgUS *float64 `yaml:"avg_us,omitempty"`
	MinUS *float64 `yaml:"min_us,omitempty"`
	MaxUS *float64 `yaml:"max_us,omitempty"`
	P50US *float64 `yaml:"p50_us,omitempty"`
	P95US *float64 `yaml:"p95_us,omitempty"`
	P99US *float64 `yaml:"p99_us,omitempty"`
}

type insertDoc struct {
	Transactions             int        `yaml:"transactions"`
	StatementsPerTransaction int        `yaml:"statements_per_transaction"`
	TransactionsFailed       int        `yaml:"transactions_failed"`
	StatementsRequested      int        `yaml:"statements_requested"`
	StatementsMade           int        `yaml:"statements_made"`
	StatementsCommitted      int        `yaml:"statements_committed"`
	Duration                 string     `yaml:"duration"`
	Latency                  latencyDoc `yaml:"latency"`
}

type selectDoc struct {
	Requested      int        `yaml:"requested"`
	MaxID          int64      `yaml:"max_id"`
	StatementsMade int        `yaml:"statements_made"`
	KeysMissing    int        `yaml:"keys_missing"`
	LookupsFailed  int        `yaml:"lookups_failed"`
	Duration       string     `yaml:"duration"`
	Latency        latencyDoc `yaml:"latency"`
}

type reportDoc struct {
	RunID    string     `yaml:"run_id"`
	Database string     `yaml:"database"`
	Table    string     `yaml:"table,omitempty"`
	Started  time.Time  `yaml:"started"`
	Finished time.Time  `yaml:"finished"`
	Insert   *insertDoc `yaml:"insert,omitempty"`
	Select   *selectDoc `yaml:"select,omitempty"`
}

// WriteYAML writes rep in a stable, machine readable form.
func WriteYAML(w io.Writer, rep *Report) error {
	doc := reportDoc{
		RunID:    rep.RunID,
		Database: rep.Database,
		Table:    rep.Table,
		Started:  rep.Started,
		Finished: rep.Finished,
	}
	if r := rep.Insert; r != nil {
		doc.Insert = &insertDoc{
			Transactions:             r.Transactions,
			StatementsPerTransaction: r.StatementsPerTransaction,
			TransactionsFailed:       r.TransactionsFailed,
			StatementsRequested:      r.StatementsRequested,
			StatementsMade:           r.StatementsMade,
			StatementsCommitted:      r.StatementsCommitted,
			Duration:                 r.Duration.String(),
			Latency:                  newLatencyDoc(r.Latency),
		}
	}
	if r := rep.Select; r != nil {
		doc.Select = &selectDoc{
			Requested:      r.Requested,
			MaxID:          r.MaxID,
			StatementsMade: r.StatementsMade,
			KeysMissing:    r.KeysMissing,
			LookupsFailed:  r.LookupsFailed,
			Duration:       r.Duration.String(),
			Latency:        newLatencyDoc(r.Latency),
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("yaml.Encode failed: %w", err)
	}
	return enc.Close()
}

func newLatencyDoc(s *LatencyStats) latencyDoc {
	d := latencyDoc{Count: s.Count, SumUS: s.Sum}
	avg, ok := s.Average()
	if !ok {
		return d
	}
	minUS, maxUS := s.Min, s.Max
	p50, _ := s.Percentile(50)
	p95, _ := s.Percentile(95)
	p99, _ := s.Percentile(99)
	d.AvgUS, d.MinUS, d.MaxUS = &avg, &minUS, &maxUS
	d.P50US, d.P95US, d.P99US = &p50, &p95, &p99
	return d
}
