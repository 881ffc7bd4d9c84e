package contracts

import (
	"context"
	"time"
)

// PurgeSchedule records when archived messages become eligible for permanent
// deletion. Archiving schedules a purge after the retention period; recover
// and delete cancel it. The worker drains due entries.
type PurgeSchedule interface {
	Schedule(ctx context.Context, kind string, id int64, at time.Time) error
	Cancel(ctx context.Context, kind string, id int64) error
	// Due returns ids whose deadline is at or before now.
	Due(ctx context.Context, kind string, now time.Time) ([]int64, error)
	// Done removes a drained entry once the purge succeeded.
	Done(ctx context.Context, kind string, id int64) error
}
