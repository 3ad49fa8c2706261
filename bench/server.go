package bench

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidDatabaseName reports whether name can be used as a benchmark database.
func ValidDatabaseName(name string) bool {
	return identRe.MatchString(name)
}

// ServerLifecycleManager creates and drops databases over short-lived
// administrative connections. It never keeps a connection open.
type ServerLifecycleManager struct {
	Dialer   Dialer
	Endpoint ServerEndpoint
	Log      zerolog.Logger
}

func NewServerLifecycleManager(d Dialer, ep ServerEndpoint, log zerolog.Logger) *ServerLifecycleManager {
	return &ServerLifecycleManager{Dialer: d, Endpoint: ep, Log: log}
}

func (s *ServerLifecycleManager) CreateDatabase(ctx context.Context, name string) error {
	if err := s.admin(ctx, "CREATE DATABASE", name); err != nil {
		s.Log.Error().Err(err).Str("database", name).Msg("database creation failed")
		return err
	}
	s.Log.Info().Str("database", name).Msg("database created")
	return nil
}

// DropDatabase drops name. A session connected to name is closed first since
// the server refuses to drop a database with live connections.
func (s *ServerLifecycleManager) DropDatabase(ctx context.Context, name string, session *SessionManager) error {
	if session != nil && session.CurrentDatabase() == name {
		if err := session.Disconnect(ctx); err != nil {
			s.Log.Warn().Err(err).Str("database", name).Msg("session close before drop failed")
		}
	}

	if err := s.admin(ctx, "DROP DATABASE", name); err != nil {
		s.Log.Error().Err(err).Str("database", name).Msg("database dropping failed")
		return err
	}
	s.Log.Info().Str("database", name).Msg("database dropped")
	return nil
}

func (s *ServerLifecycleManager) admin(ctx context.Context, verb, name string) error {
	if !ValidDatabaseName(name) {
		return fmt.Errorf("%w: %s: invalid database name %q", ErrProvisioning, verb, name)
	}

	conn, err := s.Dialer.Dial(ctx, s.Endpoint, "")
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrProvisioning, verb, name,
			fmt.Errorf("%w: open administrative connection: %w", ErrConnection, err))
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			s.Log.Warn().Err(err).Msg("administrative connection closing failed")
		}
	}()

	q := verb + " " + s.Dialer.Dialect().QuoteIdent(name)
	if err := conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrProvisioning, verb, name, err)
	}
	return nil
}
