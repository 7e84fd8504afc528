package uid

import (
	"sync"
	"testing"
	"time"
)

func TestGenerate_UniqueCounters(t *testing.T) {
	const n = 1000
	seen := make(map[uint64]bool, n)
	for i := 0; i < n; i++ {
		id := Generate()
		if id.IsBad() {
			t.Fatalf("Generate() returned Bad at iteration %d", i)
		}
		if seen[id.Counter] {
			t.Fatalf("duplicate counter %d", id.Counter)
		}
		seen[id.Counter] = true
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	g := NewGenerator(nil, nil)
	const workers, per = 8, 200

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := g.Generate()
				mu.Lock()
				if seen[id.Counter] {
					t.Errorf("duplicate counter %d", id.Counter)
				}
				seen[id.Counter] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Errorf("expected %d identities, got %d", workers*per, len(seen))
	}
}

func TestGenerate_FieldsPopulated(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGenerator(func() time.Time { return now }, func() int { return 4242 })

	id := g.Generate()
	if id.Counter != 1 {
		t.Errorf("Counter = %d, want 1", id.Counter)
	}
	if id.PID != 4242 {
		t.Errorf("PID = %d, want 4242", id.PID)
	}
	if id.Time != now.Unix() {
		t.Errorf("Time = %d, want %d", id.Time, now.Unix())
	}
}

func TestGenerate_ClockFailureDoesNotAdvance(t *testing.T) {
	var broken bool
	g := NewGenerator(func() time.Time {
		if broken {
			return time.Time{}
		}
		return time.Now()
	}, nil)

	first := g.Generate()
	broken = true
	if id := g.Generate(); !id.IsBad() {
		t.Fatalf("expected Bad on clock failure, got %v", id)
	}
	broken = false
	second := g.Generate()
	if second.Counter != first.Counter+1 {
		t.Errorf("counter advanced on failure: first=%d second=%d", first.Counter, second.Counter)
	}
}

func TestEqual(t *testing.T) {
	a := UID{Counter: 1, PID: 2, Time: 3}
	tests := []struct {
		name  string
		other UID
		want  bool
	}{
		{"identical", UID{Counter: 1, PID: 2, Time: 3}, true},
		{"counter differs", UID{Counter: 9, PID: 2, Time: 3}, false},
		{"pid differs", UID{Counter: 1, PID: 9, Time: 3}, false},
		{"time differs", UID{Counter: 1, PID: 2, Time: 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBad_NeverCollides(t *testing.T) {
	id := Generate()
	if id.Equal(Bad) {
		t.Fatal("generated identity equals Bad")
	}
	if !Bad.IsBad() {
		t.Fatal("Bad.IsBad() = false")
	}
}
