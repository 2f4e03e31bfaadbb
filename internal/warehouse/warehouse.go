// Package warehouse executes SQL against the cluster over the Postgres wire
// protocol.
package warehouse

import "context"

// Session is an open connection to the warehouse. Every Exec outside an
// explicit transaction commits on success.
type Session interface {
	Exec(ctx context.Context, sql string) error
	QueryInt(ctx context.Context, sql string) (int64, error)
	Close(ctx context.Context) error
}
