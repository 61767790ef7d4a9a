package ulid

import (
	"sync"
	"testing"
	"time"
)

func TestSameMillisecondIDsIncrease(t *testing.T) {
	gen := NewGenerator(nil)
	at := time.Now()

	prev := gen.At(at)
	for range 100 {
		next := gen.At(at)
		if next.Compare(prev) <= 0 {
			t.Fatalf("%s does not sort after %s", next, prev)
		}
		prev = next
	}
}

func TestNextIsUniqueAcrossGoroutines(t *testing.T) {
	const n = 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := Next()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(seen))
	}
}

func TestTimestamp(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	got, err := Timestamp(NewGenerator(nil).At(at).String())
	if err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("unexpected time: %v", got)
	}
	if _, err := Timestamp("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
