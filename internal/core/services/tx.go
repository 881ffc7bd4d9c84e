package services

import "context"

// TxRunner runs a closure inside one database transaction. The Postgres
// plugin provides the real implementation; tests substitute a passthrough.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
