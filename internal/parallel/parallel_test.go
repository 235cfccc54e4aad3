package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor_CoversAllIndices(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	const n = 1000
	var visited [n]int32
	For(n, func(i int) {
		atomic.AddInt32(&visited[i], 1)
	}, cfg)

	for i, count := range visited {
		if count != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, count)
		}
	}
}

func TestFor_SequentialFallback(t *testing.T) {
	// n below MinChunkSize runs inline; order must be preserved.
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 100}

	var order []int
	For(10, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, want %d", i, got, i)
		}
	}
}

func TestFor_Disabled(t *testing.T) {
	cfg := Config{Enabled: false, NumWorkers: 4, MinChunkSize: 1}

	count := 0
	For(500, func(i int) { count++ }, cfg)

	if count != 500 {
		t.Errorf("count = %d, want 500", count)
	}
}

func TestFor_Zero(t *testing.T) {
	For(0, func(i int) {
		t.Error("callback invoked for n = 0")
	}, DefaultConfig())
}

func TestForBatch(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1}

	var seen [3][5]int32
	ForBatch(3, 5, func(b, c int) {
		atomic.AddInt32(&seen[b][c], 1)
	}, cfg)

	for b := range seen {
		for c := range seen[b] {
			if seen[b][c] != 1 {
				t.Errorf("(%d, %d) visited %d times, want 1", b, c, seen[b][c])
			}
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
	if cfg.MinChunkSize < 1 {
		t.Errorf("MinChunkSize = %d, want >= 1", cfg.MinChunkSize)
	}
}
