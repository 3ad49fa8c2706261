// Package config reads the flat key set that drives a benchmark run.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"stmtbench/bench"

	"gopkg.in/yaml.v3"
)

var ErrConfig = errors.New("config error")

// Keys of the configuration surface.
const (
	KeyURL              = "dbms_url"
	KeyUser             = "dbms_user"
	KeyPassword         = "user_pw"
	KeyTransactions     = "no_transactions"
	KeyStatementsPerTx  = "no_statements_per_transaction"
	KeySelects          = "no_select_statements"
	KeyDriver           = "driver"
	KeyBenchmarkDB      = "benchmark_db"
	KeyDropAfterTest    = "drop_after_test"
	KeyStatementTimeout = "statement_timeout"
	KeyAdminDB          = "admin_db"
	KeySSLMode          = "sslmode"
	KeyConnectTimeout   = "connect_timeout"
)

// SSLModes are the accepted sslmode values for the PostgreSQL drivers.
var SSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

var required = []string{KeyURL, KeyUser, KeyPassword, KeyTransactions, KeyStatementsPerTx, KeySelects}

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverLibPQ    Driver = "pq"
	DriverMySQL    Driver = "mysql"
)

func DriverValues() []Driver {
	return []Driver{DriverPostgres, DriverLibPQ, DriverMySQL}
}

type Config struct {
	URL      string
	User     string
	Password string

	Transactions             int
	StatementsPerTransaction int
	Selects                  int

	Driver           Driver
	BenchmarkDB      string
	AdminDB          string
	DropAfterTest    bool
	StatementTimeout time.Duration
	// SSLMode applies to the postgres and pq drivers, "" keeps the driver default.
	SSLMode        string
	ConnectTimeout time.Duration
}

func (c Config) Endpoint() bench.ServerEndpoint {
	return bench.ServerEndpoint{Address: c.URL, User: c.User, Password: c.Password}
}

func (c Config) Benchmark() bench.BenchmarkConfig {
	return bench.BenchmarkConfig{
		Transactions:             c.Transactions,
		StatementsPerTransaction: c.StatementsPerTransaction,
		Selects:                  c.Selects,
	}
}

// ReadFile reads a YAML document of flat scalar keys. A missing file yields
// an empty key set so that every key can still come from overrides.
func ReadFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	return values, nil
}

// Load reads path, applies overrides on top of it and validates the result.
func Load(path string, overrides map[string]string) (Config, error) {
	values, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	for k, v := range overrides {
		values[k] = v
	}
	return Parse(values)
}

// Parse validates the key set. Every problem is reported, not only the first.
func Parse(values map[string]string) (Config, error) {
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(values[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, fmt.Errorf("%w: missing required keys: %s", ErrConfig, strings.Join(missing, ", "))
	}

	cfg := Config{
		URL:           strings.TrimSpace(values[KeyURL]),
		User:          values[KeyUser],
		Password:      values[KeyPassword],
		Driver:        DriverPostgres,
		BenchmarkDB:   bench.DefaultDatabase,
		DropAfterTest: true,
	}

	var errs []error
	cfg.Transactions = count(values, KeyTransactions, &errs)
	cfg.StatementsPerTransaction = count(values, KeyStatementsPerTx, &errs)
	cfg.Selects = count(values, KeySelects, &errs)

	if v := strings.TrimSpace(values[KeyDriver]); v != "" {
		cfg.Driver = Driver(strings.ToLower(v))
		if !knownDriver(cfg.Driver) {
			errs = append(errs, fmt.Errorf("%s: unsupported driver %q", KeyDriver, v))
		}
	}
	if v := strings.TrimSpace(values[KeyBenchmarkDB]); v != "" {
		cfg.BenchmarkDB = v
	}
	if !bench.ValidDatabaseName(cfg.BenchmarkDB) {
		errs = append(errs, fmt.Errorf("%s: %q is not a plain identifier", KeyBenchmarkDB, cfg.BenchmarkDB))
	}
	cfg.AdminDB = strings.TrimSpace(values[KeyAdminDB])

	if v := strings.TrimSpace(values[KeyDropAfterTest]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", KeyDropAfterTest, v))
		}
		cfg.DropAfterTest = b
	}
	cfg.StatementTimeout = duration(values, KeyStatementTimeout, &errs)
	cfg.ConnectTimeout = duration(values, KeyConnectTimeout, &errs)

	if v := strings.TrimSpace(values[KeySSLMode]); v != "" {
		cfg.SSLMode = strings.ToLower(v)
		if !contains(SSLModes, cfg.SSLMode) {
			errs = append(errs, fmt.Errorf("%s: unsupported value %q", KeySSLMode, v))
		}
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return cfg, nil
}

func count(values map[string]string, key string, errs *[]error) int {
	v := strings.TrimSpace(values[key])
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return 0
	}
	if n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: must not be negative, got %d", key, n))
		return 0
	}
	return n
}

// duration parses an optional non-negative duration; absent or "0" is zero.
func duration(values map[string]string, key string, errs *[]error) time.Duration {
	v := strings.TrimSpace(values[key])
	if v == "" || v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return 0
	}
	return d
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func knownDriver(d Driver) bool {
	for _, v := range DriverValues() {
		if v == d {
			return true
		}
	}
	return false
}
