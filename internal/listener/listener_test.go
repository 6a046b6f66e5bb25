package listener

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent(`{"op":"INSERT","user_id":"9b2d","contest_id":5512}`)
	if err != nil {
		t.Fatalf("parseEvent: %v", err)
	}
	if ev.Op != "INSERT" || ev.UserID != "9b2d" || ev.ContestID != 5512 {
		t.Fatalf("event = %+v", ev)
	}

	if _, err := parseEvent(`{"user_id":"x"}`); err == nil {
		t.Fatal("expected error for missing op")
	}
	if _, err := parseEvent(`not json`); err == nil {
		t.Fatal("expected error for bad json")
	}
}

func TestCoalesce_OneFirePerBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan ReminderEvent, 16)
	var fired int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		coalesce(ctx, events, 30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	}()

	for i := 0; i < 5; i++ {
		events <- ReminderEvent{Op: "INSERT", ContestID: int64(i)}
	}
	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("fired = %d after first burst, want 1", n)
	}

	events <- ReminderEvent{Op: "UPDATE"}
	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 2 {
		t.Fatalf("fired = %d after second burst, want 2", n)
	}

	cancel()
	<-done
}
