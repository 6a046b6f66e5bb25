package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_TTL(t *testing.T) {
	c := New(true)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	etag := c.Set("k", []byte(`{"a":1}`), time.Minute)
	data, got, ok := c.Get("k")
	if !ok || got != etag || string(data) != `{"a":1}` {
		t.Fatalf("Get = %q %q %v", data, got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	c.evict()
	if n := c.Stats().TotalKeys; n != 0 {
		t.Fatalf("total_keys after evict = %d", n)
	}
}

func TestCache_Disabled(t *testing.T) {
	c := New(false)
	etag := c.Set("k", []byte("x"), time.Minute)
	if etag != ComputeETag([]byte("x")) {
		t.Fatalf("etag = %q", etag)
	}
	if _, _, ok := c.Get("k"); ok {
		t.Fatal("disabled cache returned a value")
	}
}

func TestCache_FetchLoadsOnce(t *testing.T) {
	c := New(true)
	var calls int32
	release := make(chan struct{})
	load := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("payload"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, _, err := c.Fetch("contests", time.Minute, load); err != nil {
				t.Errorf("Fetch: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("load calls = %d, want 1", calls)
	}
	_, _, hit, err := c.Fetch("contests", time.Minute, load)
	if err != nil || !hit {
		t.Fatalf("second fetch hit=%v err=%v", hit, err)
	}
}

func TestCache_FetchErrorNotCached(t *testing.T) {
	c := New(true)
	boom := errors.New("feed down")
	if _, _, _, err := c.Fetch("k", time.Minute, func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, _, ok := c.Get("k"); ok {
		t.Fatal("error result was cached")
	}
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("body"))
	if !CheckETagMatch(etag, etag) || !CheckETagMatch("*", etag) {
		t.Fatal("expected match")
	}
	if CheckETagMatch("", etag) || CheckETagMatch(`W/"other"`, etag) {
		t.Fatal("unexpected match")
	}
}

func TestCheckETagMatch_ListAndStrongForm(t *testing.T) {
	etag := ComputeETag([]byte("body"))
	strong := etag[len("W/"):]
	if !CheckETagMatch(`"stale", `+etag, etag) {
		t.Fatal("tag in list not matched")
	}
	if !CheckETagMatch(strong, etag) {
		t.Fatal("strong form not matched")
	}
}

func TestCache_StatsCountsHitsAndMisses(t *testing.T) {
	c := New(true)
	c.Get("k")
	c.Set("k", []byte("v"), time.Minute)
	c.Get("k")

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.ActiveKeys != 1 {
		t.Fatalf("stats = %+v", st)
	}
}
