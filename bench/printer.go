package bench

import (
	"fmt"
	"io"
	"time"
)

func PrintInsert(w io.Writer, r *InsertResult) {
	fmt.Fprintf(w, "\n┌─────────────────────────────────────────────────┐\n")
	fmt.Fprintf(w, "│  %-47s│\n", fmt.Sprintf("INSERT: %d transactions x %d statements", r.Transactions, r.StatementsPerTransaction))
	fmt.Fprintf(w, "├─────────────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│  Transactions failed:  %-25s│\n", fmt.Sprintf("%d/%d", r.TransactionsFailed, r.Transactions))
	fmt.Fprintf(w, "│  Statements timed:     %-25s│\n", fmt.Sprintf("%d/%d (committed or not)", r.StatementsMade, r.StatementsRequested))
	fmt.Fprintf(w, "│  Statements committed: %-25d│\n", r.StatementsCommitted)
	fmt.Fprintf(w, "│  Duration:             %-25s│\n", r.Duration.Round(time.Millisecond))
	printLatency(w, r.Latency)
	fmt.Fprintf(w, "└─────────────────────────────────────────────────┘\n")
}

func PrintSelect(w io.Writer, r *SelectResult) {
	fmt.Fprintf(w, "\n┌─────────────────────────────────────────────────┐\n")
	fmt.Fprintf(w, "│  %-47s│\n", fmt.Sprintf("SELECT: %d point lookups", r.Requested))
	fmt.Fprintf(w, "├─────────────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│  Key domain:           %-25s│\n", fmt.Sprintf("[0, %d]", r.MaxID))
	fmt.Fprintf(w, "│  Statements timed:     %-25s│\n", fmt.Sprintf("%d/%d", r.StatementsMade, r.Requested))
	fmt.Fprintf(w, "│  Keys without row:     %-25d│\n", r.KeysMissing)
	fmt.Fprintf(w, "│  Lookups failed:       %-25d│\n", r.LookupsFailed)
	fmt.Fprintf(w, "│  Duration:             %-25s│\n", r.Duration.Round(time.Millisecond))
	printLatency(w, r.Latency)
	fmt.Fprintf(w, "└─────────────────────────────────────────────────┘\n")
}

func printLatency(w io.Writer, s *LatencyStats) {
	fmt.Fprintf(w, "├─────────────────────────────────────────────────┤\n")
	avg, ok := s.Average()
	if !ok {
		fmt.Fprintf(w, "│  Latency:              %-25s│\n", "no data")
		return
	}
	p50, _ := s.Percentile(50)
	p95, _ := s.Percentile(95)
	p99, _ := s.Percentile(99)
	fmt.Fprintf(w, "│  Latency avg:          %-25s│\n", FmtMicros(avg))
	fmt.Fprintf(w, "│  Latency worst:        %-25s│\n", FmtMicros(s.Max))
	fmt.Fprintf(w, "│  Latency best:         %-25s│\n", FmtMicros(s.Min))
	fmt.Fprintf(w, "│  Latency p50:          %-25s│\n", FmtMicros(p50))
	fmt.Fprintf(w, "│  Latency p95:          %-25s│\n", FmtMicros(p95))
	fmt.Fprintf(w, "│  Latency p99:          %-25s│\n", FmtMicros(p99))
}

func FmtMicros(us float64) string {
	return fmt.Sprintf("%.1fµs", us)
}
