package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/metrics"
	"sessionattendance/internal/queue"
)

// SummaryCache keeps day summaries in Redis. Failures degrade to a miss.
//
// Every date has a generation counter that Invalidate bumps. Set only
// writes when the generation still matches the one returned by the Get
// that preceded the computation, so a summary computed before a mark can
// never land in the cache after that mark's Invalidate.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewSummaryCache creates a cache with entries expiring after ttl.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SummaryCache{client: client, ttl: ttl, prefix: "attendance:summary:"}
}

// Key returns the Redis key for a batch and date; an empty batch is the
// all-batches summary.
func (c *SummaryCache) Key(batchID, date string) string {
	if batchID == "" {
		batchID = "*all*"
	}
	return c.prefix + "day:" + batchID + ":" + date
}

func (c *SummaryCache) genKey(date string) string {
	return c.prefix + "gen:" + date
}

// Get returns the cached summary and the date's current generation. The
// generation is valid even on a miss and must be passed to Set.
func (c *SummaryCache) Get(ctx context.Context, batchID, date string) (attendance.DaySummary, int64, bool) {
	vals, err := c.client.MGet(ctx, c.Key(batchID, date), c.genKey(date)).Result()
	if err != nil {
		log.Printf("summary cache get: %v", err)
		metrics.SummaryCache.WithLabelValues("miss").Inc()
		return attendance.DaySummary{}, -1, false
	}
	gen := parseGen(vals[1])
	raw, ok := vals[0].(string)
	if !ok {
		metrics.SummaryCache.WithLabelValues("miss").Inc()
		return attendance.DaySummary{}, gen, false
	}
	var sum attendance.DaySummary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		metrics.SummaryCache.WithLabelValues("miss").Inc()
		return attendance.DaySummary{}, gen, false
	}
	metrics.SummaryCache.WithLabelValues("hit").Inc()
	return sum, gen, true
}

// Set stores sum if the date's generation is still gen. It reports
// whether the value was written.
func (c *SummaryCache) Set(ctx context.Context, batchID string, sum attendance.DaySummary, gen int64) bool {
	if gen < 0 {
		return false
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return false
	}
	genKey := c.genKey(sum.Date)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if parseGen(cur) != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.Key(batchID, sum.Date), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return false
	default:
		log.Printf("summary cache set: %v", err)
		return false
	}
}

// Invalidate bumps the date's generation, then drops the batch's and the
// all-batches summary for it.
func (c *SummaryCache) Invalidate(ctx context.Context, batchID, date string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(date))
		pipe.Del(ctx, c.Key(batchID, date), c.Key("", date))
		return nil
	})
	if err != nil {
		log.Printf("summary cache invalidate: %v", err)
	}
}

// Warm recomputes the summaries named by marked events until msgs closes.
func (c *SummaryCache) Warm(ctx context.Context, agg *attendance.Aggregator, msgs <-chan queue.Message) {
	for msg := range msgs {
		m, err := queue.DecodeMarked(msg)
		if err != nil {
			continue
		}
		for _, batchID := range []string{m.BatchID, ""} {
			c.Refresh(ctx, agg, batchID, m.Date)
		}
		log.Printf("warmed day summary for %s %s", m.BatchID, m.Date)
	}
}

// Refresh recomputes one day summary and stores it under the generation
// read before the computation.
func (c *SummaryCache) Refresh(ctx context.Context, agg *attendance.Aggregator, batchID, date string) {
	_, gen, _ := c.Get(ctx, batchID, date)
	sum, err := agg.SummarizeDay(ctx, batchID, date)
	if err != nil {
		log.Printf("warm summary %s %s failed: %v", batchID, date, err)
		return
	}
	c.Set(ctx, batchID, sum, gen)
}

var errStaleGeneration = errors.New("summary generation changed")

// parseGen reads a generation value; a missing key is generation 0.
func parseGen(v any) int64 {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
