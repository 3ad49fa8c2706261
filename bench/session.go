package bench

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// SessionManager owns at most one connection scoped to a database. Switching
// databases always closes the previous connection before opening the next.
type SessionManager struct {
	Dialer   Dialer
	Endpoint ServerEndpoint
	Log      zerolog.Logger

	conn     Conn
	database string
}

func NewSessionManager(d Dialer, ep ServerEndpoint, log zerolog.Logger) *SessionManager {
	return &SessionManager{Dialer: d, Endpoint: ep, Log: log}
}

func (m *SessionManager) Connect(ctx context.Context, database string) error {
	if err := m.Disconnect(ctx); err != nil {
		return err
	}

	conn, err := m.Dialer.Dial(ctx, m.Endpoint, database)
	if err != nil {
		m.Log.Error().Err(err).Str("database", database).Msg("connection opening failed")
		return fmt.Errorf("%w: open %s: %w", ErrConnection, database, err)
	}
	m.conn = conn
	m.database = database
	m.Log.Debug().Str("database", database).Msg("session opened")
	return nil
}

// Disconnect is a no-op without an active session. The session is forgotten
// even when closing fails; the close error is returned afterwards.
func (m *SessionManager) Disconnect(ctx context.Context) error {
	if m.conn == nil {
		return nil
	}
	conn, database := m.conn, m.database
	m.conn, m.database = nil, ""

	if err := conn.Close(ctx); err != nil {
		m.Log.Error().Err(err).Str("database", database).Msg("connection closing failed")
		return fmt.Errorf("%w: close %s: %w", ErrConnection, database, err)
	}
	m.Log.Debug().Str("database", database).Msg("session closed")
	return nil
}

// CurrentDatabase returns "" when no session is active.
func (m *SessionManager) CurrentDatabase() string {
	return m.database
}

// Conn returns the active connection or ErrNoSession.
func (m *SessionManager) Conn() (Conn, error) {
	if m.conn == nil {
		return nil, ErrNoSession
	}
	return m.conn, nil
}

func (m *SessionManager) Dialect() Dialect {
	return m.Dialer.Dialect()
}
