package credential

import (
	"testing"
	"time"
)

func fakeClock(start time.Time) (*time.Time, func() time.Time) {
	t := start
	return &t, func() time.Time { return t }
}

func TestPoolRoundRobin(t *testing.T) {
	p := New([]string{"a", "b", "c"}, RoundRobin, nil)

	var got []string
	for i := 0; i < 6; i++ {
		item, err := p.Next("")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, item)
	}

	want := []string{"a", "b", "c", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPoolFixedPriorityAlwaysStartsAtZero(t *testing.T) {
	p := New([]string{"a", "b", "c"}, FixedPriority, nil)

	for i := 0; i < 5; i++ {
		item, err := p.Next("")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if item != "a" {
			t.Fatalf("fixed_priority iteration %d = %q, want %q", i, item, "a")
		}
	}
}

func TestPoolUnknownAlgorithmFallsBackToRoundRobin(t *testing.T) {
	p := New([]string{"a", "b"}, Algorithm("bogus"), nil)
	if p.algorithm != RoundRobin {
		t.Fatalf("algorithm = %v, want RoundRobin", p.algorithm)
	}
}

func TestPoolRateLimitExhaustion(t *testing.T) {
	cur, clock := fakeClock(time.Unix(0, 0))
	p := New([]string{"a", "b"}, RoundRobin, RateLimits{
		"default": {{Count: 1, Seconds: 60}},
	})
	p.now = clock

	// First pass: each credential allows exactly one request.
	if _, err := p.Next("gpt-4"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := p.Next("gpt-4"); err != nil {
		t.Fatalf("Next: %v", err)
	}

	// Both credentials are now rate limited within the same window.
	if _, err := p.Next("gpt-4"); err != ErrExhausted {
		t.Fatalf("Next error = %v, want ErrExhausted", err)
	}

	*cur = cur.Add(61 * time.Second)
	if _, err := p.Next("gpt-4"); err != nil {
		t.Fatalf("Next after window elapsed: %v", err)
	}
}

func TestPoolExactModelMatchBeatsSubstring(t *testing.T) {
	p := New([]string{"a"}, RoundRobin, RateLimits{
		"gpt-4":   {{Count: 999999, Seconds: 60}},
		"gpt":     {{Count: 1, Seconds: 60}},
		"default": {{Count: 999999, Seconds: 60}},
	})

	for i := 0; i < 5; i++ {
		if _, err := p.Next("gpt-4"); err != nil {
			t.Fatalf("exact match iteration %d: %v", i, err)
		}
	}
}

func TestPoolSubstringMatchSkipsDefault(t *testing.T) {
	p := New([]string{"a"}, RoundRobin, RateLimits{
		"gpt": {{Count: 1, Seconds: 60}},
	})

	if _, err := p.Next("my-gpt-model"); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := p.Next("my-gpt-model"); err != ErrExhausted {
		t.Fatalf("Next error = %v, want ErrExhausted", err)
	}
}

func TestPoolCooling(t *testing.T) {
	cur, clock := fakeClock(time.Unix(0, 0))
	p := New([]string{"a", "b"}, RoundRobin, nil)
	p.now = clock

	p.SetCooling("a", 30*time.Second)

	item, err := p.Next("")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if item != "b" {
		t.Fatalf("item = %q, want %q (a should be cooling)", item, "b")
	}

	*cur = cur.Add(31 * time.Second)
	item, err = p.Next("")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if item != "a" {
		t.Fatalf("item = %q, want %q (cooling should have elapsed)", item, "a")
	}
}

func TestSetCoolingZeroValueIsNoop(t *testing.T) {
	p := New([]string{"a", "b"}, RoundRobin, nil)
	p.SetCooling("", time.Minute)
	if len(p.cooling) != 0 {
		t.Fatalf("expected zero-value SetCooling to be a no-op, got %v", p.cooling)
	}
}

func TestAfterNextCurrent(t *testing.T) {
	p := New([]string{"a", "b", "c"}, RoundRobin, nil)
	item, err := p.Next("")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := p.AfterNextCurrent(); got != item {
		t.Fatalf("AfterNextCurrent = %q, want %q", got, item)
	}
}

func TestRandomAlgorithmKeepsSameMultiset(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	p := New(items, Random, nil)
	seen := make(map[string]bool)
	for i := 0; i < len(items); i++ {
		item, err := p.Next("")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen[item] = true
	}
	if len(seen) != len(items) {
		t.Fatalf("random schedule visited %d distinct items, want %d", len(seen), len(items))
	}
}

func TestPoolCountAndEmpty(t *testing.T) {
	p := New([]string{"a", "b"}, RoundRobin, nil)
	if p.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", p.Count())
	}

	empty := New[string](nil, RoundRobin, nil)
	if _, err := empty.Next(""); err == nil {
		t.Fatal("expected error from empty pool")
	}
}
