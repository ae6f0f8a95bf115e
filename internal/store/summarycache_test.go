package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/queue"
)

func newTestCache(t *testing.T) (*SummaryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSummaryCache(client, time.Minute), mr
}

func TestSummaryCacheSetThenGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, gen, ok := c.Get(ctx, "cse-a", "2025-11-20")
	if ok || gen != 0 {
		t.Fatalf("empty cache: ok=%v gen=%d", ok, gen)
	}
	sum := attendance.DaySummary{Date: "2025-11-20", FN: attendance.SessionStats{Total: 2, Present: 1, Absent: 1}}
	if !c.Set(ctx, "cse-a", sum, gen) {
		t.Fatal("set with current generation was dropped")
	}
	got, _, ok := c.Get(ctx, "cse-a", "2025-11-20")
	if !ok || got != sum {
		t.Fatalf("get = %+v, %v", got, ok)
	}
	if ttl := mr.TTL(c.Key("cse-a", "2025-11-20")); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	if _, _, ok := c.Get(ctx, "cse-b", "2025-11-20"); ok {
		t.Fatal("other batch hit")
	}
}

func TestSummaryCacheInvalidateDropsBatchAndAll(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	day := attendance.DaySummary{Date: "2025-11-20"}
	c.Set(ctx, "cse-a", day, 0)
	c.Set(ctx, "", day, 0)
	c.Set(ctx, "cse-a", attendance.DaySummary{Date: "2025-11-19"}, 0)

	c.Invalidate(ctx, "cse-a", "2025-11-20")
	if mr.Exists(c.Key("cse-a", "2025-11-20")) || mr.Exists(c.Key("", "2025-11-20")) {
		t.Fatal("invalidated keys still present")
	}
	if !mr.Exists(c.Key("cse-a", "2025-11-19")) {
		t.Fatal("other date was dropped")
	}
	if _, gen, _ := c.Get(ctx, "cse-a", "2025-11-20"); gen != 1 {
		t.Fatalf("generation = %d, want 1", gen)
	}
}

func TestSummaryCacheSetAfterInvalidateIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, gen, _ := c.Get(ctx, "cse-a", "2025-11-20")
	stale := attendance.DaySummary{Date: "2025-11-20", FN: attendance.SessionStats{Total: 1, Present: 1}}
	c.Invalidate(ctx, "cse-a", "2025-11-20")
	if c.Set(ctx, "cse-a", stale, gen) {
		t.Fatal("stale summary written after invalidate")
	}
	if mr.Exists(c.Key("cse-a", "2025-11-20")) {
		t.Fatal("stale key present")
	}
	if c.Set(ctx, "cse-a", stale, -1) {
		t.Fatal("set with unknown generation was written")
	}
}

func TestSummaryCacheUnavailableIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	ctx := context.Background()
	_, gen, ok := c.Get(ctx, "cse-a", "2025-11-20")
	if ok || gen != -1 {
		t.Fatalf("ok=%v gen=%d", ok, gen)
	}
	if c.Set(ctx, "cse-a", attendance.DaySummary{Date: "2025-11-20"}, gen) {
		t.Fatal("set succeeded against a closed server")
	}
	c.Invalidate(ctx, "cse-a", "2025-11-20")
}

func TestSummaryCacheWarm(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	records := attendance.NewMemoryStore()
	svc := attendance.NewService(records, nil, nil)
	if _, err := svc.Mark(ctx, attendance.MarkRequest{BatchID: "cse-a", Date: "2025-11-20", Session: "AN", Submissions: []attendance.Submission{
		{RegistrationNumber: "21CS001", Status: "Present"},
		{RegistrationNumber: "21CS002", Status: "On-Duty", Reason: "expo"},
	}}); err != nil {
		t.Fatal(err)
	}
	c.Invalidate(ctx, "cse-a", "2025-11-20")

	msg, err := queue.NewMarked(queue.Marked{BatchID: "cse-a", Date: "2025-11-20", Session: "AN"})
	if err != nil {
		t.Fatal(err)
	}
	msgs := make(chan queue.Message, 2)
	msgs <- msg
	msgs <- queue.Message{Type: "other"}
	close(msgs)
	c.Warm(ctx, attendance.NewAggregator(records), msgs)

	for _, batch := range []string{"cse-a", ""} {
		sum, _, ok := c.Get(ctx, batch, "2025-11-20")
		if !ok || sum.AN.Total != 2 || sum.AN.OnDuty != 1 {
			t.Fatalf("batch %q: %+v, %v", batch, sum, ok)
		}
	}
}
