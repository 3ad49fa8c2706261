package bench

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeServer is an in-memory stand-in for a database server. It records the
// connection lifecycle so tests can assert on ordering.
type fakeServer struct {
	mu        sync.Mutex
	databases map[string]*fakeDB
	open      map[string]int
	events    []string

	dialErr    func(database string) error
	closeErr   func(database string) error
	execErr    func(query string) error
	prepareErr func(query string) error
	insertErr  func(id int64) error
	commitErr  func() error
	lookupErr  func(key int64) error
	maxIDErr   error

	// broken makes every session connection report itself closed.
	broken bool
}

type fakeDB struct {
	tables map[string]bool
	rows   map[int64]Student
}

func newFakeServer() *fakeServer {
	return &fakeServer{databases: map[string]*fakeDB{}, open: map[string]int{}}
}

func (s *fakeServer) record(ev string) {
	s.events = append(s.events, ev)
}

func (s *fakeServer) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *fakeServer) rowIDs(database string) []int64 {
	db := s.databases[database]
	var ids []int64
	for id := range db.rows {
		ids = append(ids, id)
	}
	return ids
}

type fakeDialect struct{}

func (fakeDialect) Name() string                  { return "fake" }
func (fakeDialect) Placeholder(n int) string      { return "$" + strconv.Itoa(n) }
func (fakeDialect) QuoteIdent(name string) string { return `"` + name + `"` }

type fakeDialer struct {
	srv *fakeServer
}

func (d fakeDialer) Dialect() Dialect { return fakeDialect{} }

func (d fakeDialer) Dial(_ context.Context, _ ServerEndpoint, database string) (Conn, error) {
	s := d.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("dial:" + database)
	if s.dialErr != nil {
		if err := s.dialErr(database); err != nil {
			return nil, err
		}
	}
	if database != "" && s.databases[database] == nil {
		return nil, fmt.Errorf("database %q does not exist", database)
	}
	s.open[database]++
	return &fakeConn{srv: s, database: database}, nil
}

type fakeConn struct {
	srv      *fakeServer
	database string
}

func (c *fakeConn) db() *fakeDB {
	return c.srv.databases[c.database]
}

func (c *fakeConn) Exec(_ context.Context, query string, _ ...any) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("exec:" + query)
	if s.execErr != nil {
		if err := s.execErr(query); err != nil {
			return err
		}
	}

	fields := strings.Fields(query)
	switch {
	case strings.HasPrefix(query, "CREATE DATABASE "):
		name := strings.Trim(fields[2], `"`)
		if s.databases[name] != nil {
			return fmt.Errorf("database %q already exists", name)
		}
		s.databases[name] = &fakeDB{tables: map[string]bool{}, rows: map[int64]Student{}}
	case strings.HasPrefix(query, "DROP DATABASE "):
		name := strings.Trim(fields[2], `"`)
		if s.databases[name] == nil {
			return fmt.Errorf("database %q does not exist", name)
		}
		if s.open[name] > 0 {
			return fmt.Errorf("database %q is being accessed by other users", name)
		}
		delete(s.databases, name)
	case strings.HasPrefix(strings.ToUpper(query), "CREATE TABLE "):
		name := TableNameFromDDL(query)
		if c.db().tables[name] {
			return fmt.Errorf("relation %q already exists", name)
		}
		c.db().tables[name] = true
	}
	return nil
}

func (c *fakeConn) QueryRow(_ context.Context, query string, _ ...any) Row {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	if query != maxIDSQL() {
		return fakeRow{err: fmt.Errorf("unexpected query %q", query)}
	}
	if s.maxIDErr != nil {
		return fakeRow{err: s.maxIDErr}
	}
	if !c.db().tables[TableName] {
		return fakeRow{err: errors.New("relation does not exist")}
	}
	maxID := int64(-1)
	for id := range c.db().rows {
		if id > maxID {
			maxID = id
		}
	}
	return fakeRow{vals: []any{maxID}}
}

func (c *fakeConn) Prepare(_ context.Context, query string) (Stmt, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("prepare")
	if s.prepareErr != nil {
		if err := s.prepareErr(query); err != nil {
			return nil, err
		}
	}
	return &fakeStmt{conn: c, query: query}, nil
}

func (c *fakeConn) Begin(context.Context) (Tx, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.srv.record("begin")
	return &fakeTx{conn: c, pending: map[int64]Student{}}, nil
}

func (c *fakeConn) Close(context.Context) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("close:" + c.database)
	s.open[c.database]--
	if s.closeErr != nil {
		return s.closeErr(c.database)
	}
	return nil
}

func (c *fakeConn) IsClosed() bool {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.broken
}

type fakeStmt struct {
	conn  *fakeConn
	query string
	tx    *fakeTx
}

func (st *fakeStmt) Exec(_ context.Context, args ...any) error {
	s := st.conn.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	row := Student{
		ID:         args[0].(int64),
		FirstName:  args[1].(string),
		LastName:   args[2].(string),
		SignupDate: args[3].(time.Time),
	}
	if s.insertErr != nil {
		if err := s.insertErr(row.ID); err != nil {
			return err
		}
	}
	_, committed := st.conn.db().rows[row.ID]
	if st.tx != nil {
		if _, pending := st.tx.pending[row.ID]; committed || pending {
			return fmt.Errorf("duplicate key value violates unique constraint (id)=(%d)", row.ID)
		}
		st.tx.pending[row.ID] = row
		return nil
	}
	if committed {
		return fmt.Errorf("duplicate key value violates unique constraint (id)=(%d)", row.ID)
	}
	st.conn.db().rows[row.ID] = row
	return nil
}

func (st *fakeStmt) QueryRow(_ context.Context, args ...any) Row {
	s := st.conn.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	key := args[0].(int64)
	if s.lookupErr != nil {
		if err := s.lookupErr(key); err != nil {
			return fakeRow{err: err}
		}
	}
	row, ok := st.conn.db().rows[key]
	if !ok {
		return fakeRow{err: ErrNoRows}
	}
	return fakeRow{vals: []any{row.ID, row.FirstName, row.LastName, row.SignupDate}}
}

func (st *fakeStmt) Close(context.Context) error { return nil }

type fakeTx struct {
	conn    *fakeConn
	pending map[int64]Student
	done    bool
}

func (t *fakeTx) Stmt(_ context.Context, s Stmt) Stmt {
	fs := s.(*fakeStmt)
	return &fakeStmt{conn: fs.conn, query: fs.query, tx: t}
}

func (t *fakeTx) Commit(context.Context) error {
	s := t.conn.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.done {
		return errors.New("tx is closed")
	}
	if s.commitErr != nil {
		if err := s.commitErr(); err != nil {
			return err
		}
	}
	t.done = true
	s.record("commit")
	for id, row := range t.pending {
		t.conn.db().rows[id] = row
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	s := t.conn.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true
	s.record("rollback")
	return nil
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// newFixture returns a session connected to a fresh database holding an
// empty Student table.
func newFixture(t *testing.T) (*fakeServer, *SessionManager) {
	t.Helper()
	ctx := context.Background()
	srv := newFakeServer()
	dialer := fakeDialer{srv}

	server := NewServerLifecycleManager(dialer, ServerEndpoint{}, zerolog.Nop())
	require.NoError(t, server.CreateDatabase(ctx, "bench"))

	session := NewSessionManager(dialer, ServerEndpoint{}, zerolog.Nop())
	require.NoError(t, session.Connect(ctx, "bench"))

	_, err := (&SchemaProvisioner{Session: session}).CreateTable(ctx, testDDL)
	require.NoError(t, err)
	return srv, session
}

const testDDL = "CREATE TABLE Student (id integer PRIMARY KEY, first_name text, last_name text, signup_date date)"
