package bench

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

var tableNameRe = regexp.MustCompile(`(?is)^\s*create\s+(?:temp(?:orary)?\s+)?table\s+(?:if\s+not\s+exists\s+)?([^\s(]+)`)

// TableNameFromDDL extracts the table name of a CREATE TABLE statement for
// reporting. It returns "" when the statement does not look like one.
func TableNameFromDDL(ddl string) string {
	m := tableNameRe.FindStringSubmatch(ddl)
	if m == nil {
		return ""
	}
	return m[1]
}

type SchemaProvisioner struct {
	Session *SessionManager
	Log     zerolog.Logger
}

// CreateTable runs ddl verbatim on the active session and returns the table
// name found in it.
func (p *SchemaProvisioner) CreateTable(ctx context.Context, ddl string) (string, error) {
	conn, err := p.Session.Conn()
	if err != nil {
		return "", fmt.Errorf("%w: cannot create a table: %w", ErrSchema, err)
	}

	table := TableNameFromDDL(ddl)
	if err := conn.Exec(ctx, ddl); err != nil {
		p.Log.Error().Err(err).Str("table", table).Msg("table creation failed")
		return table, fmt.Errorf("%w: create table %s: %w", ErrSchema, table, err)
	}
	p.Log.Info().Str("table", table).Str("database", p.Session.CurrentDatabase()).Msg("table created")
	return table, nil
}
