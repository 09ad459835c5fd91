package receiptno

import (
	"strings"
	"sync"
	"testing"
)

func TestNewFormat(t *testing.T) {
	number := New()
	if !strings.HasPrefix(number, "RCP") {
		t.Fatalf("receipt number %q missing RCP prefix", number)
	}
	parts := strings.SplitN(number, "-", 2)
	if len(parts) != 2 {
		t.Fatalf("receipt number %q missing suffix separator", number)
	}
	timestamp := strings.TrimPrefix(parts[0], "RCP")
	if len(timestamp) != 14 {
		t.Fatalf("receipt number %q: timestamp %q has length %d, want 14", number, timestamp, len(timestamp))
	}
	for _, c := range timestamp {
		if c < '0' || c > '9' {
			t.Fatalf("receipt number %q: timestamp contains non-digit %q", number, c)
		}
	}
}

// Numbers generated concurrently inside the same clock second must still be
// unique, otherwise two checkouts could collide on the receipt number.
func TestNewUniqueUnderBurst(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[string]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				local = append(local, New())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, number := range local {
				if seen[number] {
					t.Errorf("duplicate receipt number %q", number)
				}
				seen[number] = true
			}
		}()
	}
	wg.Wait()
}
