// Package schema drops and recreates the staging and star tables.
package schema

import (
	"context"
	"fmt"

	"github.com/sparkify/dwh/internal/queries"
	"github.com/sparkify/dwh/internal/warehouse"
)

// Executor runs a single catalog statement and commits it.
type Executor interface {
	Execute(ctx context.Context, stmt queries.Statement) error
}

// SessionExecutor runs statements directly on a session.
type SessionExecutor struct {
	Session warehouse.Session
}

func (e SessionExecutor) Execute(ctx context.Context, stmt queries.Statement) error {
	return e.Session.Exec(ctx, stmt.SQL)
}

// DropTables drops every table that exists.
func DropTables(ctx context.Context, exec Executor) error {
	return runAll(ctx, exec, queries.Drop())
}

// CreateTables creates every table that does not exist.
func CreateTables(ctx context.Context, exec Executor) error {
	return runAll(ctx, exec, queries.Create())
}

// Reset drops then recreates every table, leaving them empty.
func Reset(ctx context.Context, exec Executor) error {
	if err := DropTables(ctx, exec); err != nil {
		return err
	}
	return CreateTables(ctx, exec)
}

// runAll stops at the first failure. Statements already run stay committed.
func runAll(ctx context.Context, exec Executor, stmts []queries.Statement) error {
	for _, stmt := range stmts {
		if err := exec.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("%s table %s: %w", stmt.Kind, stmt.Table, err)
		}
	}
	return nil
}
