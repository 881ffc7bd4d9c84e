package contracts

import "context"

// IDIssuer hands out globally unique message ids from the remote snowflake
// service.
type IDIssuer interface {
	NextID(ctx context.Context) (int64, error)
}
