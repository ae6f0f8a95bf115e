package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryDeliversMarked(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := NewMarked(Marked{BatchID: "b1", Date: "2025-11-20", Session: "FN"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-msgs:
		m, err := DecodeMarked(got)
		if err != nil {
			t.Fatal(err)
		}
		if m.BatchID != "b1" || m.Date != "2025-11-20" || m.Session != "FN" {
			t.Fatalf("decoded %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, _ := NewInMemory(1).Consume(ctx)
	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestDecodeMarkedRejectsOtherTypes(t *testing.T) {
	if _, err := DecodeMarked(Message{Type: "other"}); err == nil {
		t.Fatal("expected error")
	}
}
