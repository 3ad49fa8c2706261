package bench

import (
	"fmt"
	"time"
)

// TableName is the table created by the Student DDL resource.
const TableName = "Student"

// DefaultDatabase is the ephemeral database created for a run.
const DefaultDatabase = "diennea_benchmarks_test_db"

// ServerEndpoint holds the credentials used for every connection to the server.
type ServerEndpoint struct {
	Address  string // host[:port]
	User     string
	Password string
}

type BenchmarkConfig struct {
	Transactions             int
	StatementsPerTransaction int
	Selects                  int
}

// Student is the synthetic row written by the insert workload.
type Student struct {
	ID         int64
	FirstName  string
	LastName   string
	SignupDate time.Time
}

// NewStudent builds the row for the given id. Ids are derived from the
// transaction and statement index, so they are unique across a run.
func NewStudent(id int64, now time.Time) Student {
	return Student{
		ID:         id,
		FirstName:  fmt.Sprintf("student_%d_firstname", id),
		LastName:   fmt.Sprintf("student_%d_lastname", id),
		SignupDate: now,
	}
}

// RowID returns the id of statement j in transaction i.
func RowID(i, j, statementsPerTransaction int) int64 {
	return int64(i)*int64(statementsPerTransaction) + int64(j)
}

type TransactionOutcome struct {
	Committed           bool
	StatementsAttempted int
}

type InsertResult struct {
	Transactions             int
	StatementsPerTransaction int
	StatementsRequested      int
	TransactionsFailed       int
	StatementsMade           int // timed, committed or not
	StatementsCommitted      int
	Latency                  *LatencyStats
	Duration                 time.Duration
}

type SelectResult struct {
	Requested      int
	MaxID          int64
	StatementsMade int
	// KeysMissing counts timed lookups whose key had no row, a subset of
	// StatementsMade.
	KeysMissing   int
	LookupsFailed int
	Latency       *LatencyStats
	Duration      time.Duration
}

// Report is everything a run produced. Insert or Select is nil when the
// phase never started and partial when it failed.
type Report struct {
	RunID    string
	Database string
	Table    string
	Config   BenchmarkConfig
	Insert   *InsertResult
	Select   *SelectResult
	Started  time.Time
	Finished time.Time
}
