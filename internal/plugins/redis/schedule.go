package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPurgeSchedule keeps one ZSet per message kind, scored by the unix
// timestamp at which the archived message becomes purgeable. The worker
// drains members whose score has passed.
type RedisPurgeSchedule struct {
	rdb *redis.Client
}

func NewRedisPurgeSchedule(rdb *redis.Client) *RedisPurgeSchedule {
	return &RedisPurgeSchedule{rdb: rdb}
}

func (s *RedisPurgeSchedule) key(kind string) string {
	return "purge:" + kind
}

func (s *RedisPurgeSchedule) Schedule(ctx context.Context, kind string, id int64, at time.Time) error {
	return s.rdb.ZAdd(ctx, s.key(kind), redis.Z{
		Score:  float64(at.Unix()),
		Member: strconv.FormatInt(id, 10),
	}).Err()
}

func (s *RedisPurgeSchedule) Cancel(ctx context.Context, kind string, id int64) error {
	return s.rdb.ZRem(ctx, s.key(kind), strconv.FormatInt(id, 10)).Err()
}

func (s *RedisPurgeSchedule) Due(ctx context.Context, kind string, now time.Time) ([]int64, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.key(kind), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisPurgeSchedule) Done(ctx context.Context, kind string, id int64) error {
	return s.rdb.ZRem(ctx, s.key(kind), strconv.FormatInt(id, 10)).Err()
}
