// Package schema holds the DDL of the benchmark table.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed student.sql
var studentDDL string

// Student returns the built-in DDL of the Student table.
func Student() string {
	return strings.TrimSpace(studentDDL)
}

// Load returns the DDL in path, or the built-in one when path is empty. The
// file content is used verbatim apart from surrounding whitespace.
func Load(path string) (string, error) {
	if path == "" {
		return Student(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("os.ReadFile failed: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
