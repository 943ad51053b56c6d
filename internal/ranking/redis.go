package ranking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	boardKey     = "arena:leaderboard"
	statsKeyFmt  = "arena:stats:%s"
	statsField   = "matches"
	lastAccuracy = "last_accuracy"
	lastTimeUsed = "last_time_used"
)

// Redis keeps the leaderboard in a sorted set so score accumulation and
// top-N reads are single server-side operations.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the given address and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Submit(ctx context.Context, e Entry) error {
	pipe := r.client.TxPipeline()
	pipe.ZIncrBy(ctx, boardKey, float64(e.Score), e.UserID)
	statsKey := fmt.Sprintf(statsKeyFmt, e.UserID)
	pipe.HIncrBy(ctx, statsKey, statsField, 1)
	pipe.HSet(ctx, statsKey,
		lastAccuracy, strconv.FormatFloat(e.Accuracy, 'f', 4, 64),
		lastTimeUsed, strconv.Itoa(e.TimeUsedSeconds),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("submitting ranking: %w", err)
	}
	return nil
}

func (r *Redis) Top(ctx context.Context, n int) ([]Entry, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, boardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard: %w", err)
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		userID, _ := z.Member.(string)
		e := Entry{UserID: userID, Score: int(z.Score)}
		if fields, err := r.client.HGetAll(ctx, fmt.Sprintf(statsKeyFmt, userID)).Result(); err == nil {
			if v, err := strconv.Atoi(fields[statsField]); err == nil {
				e.Matches = v
			}
			if v, err := strconv.ParseFloat(fields[lastAccuracy], 64); err == nil {
				e.Accuracy = v
			}
			if v, err := strconv.Atoi(fields[lastTimeUsed]); err == nil {
				e.TimeUsedSeconds = v
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
