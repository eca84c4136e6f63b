package dem

import (
	"sync"
	"testing"
)

func descriptorFor(t *testing.T, name string) Descriptor {
	t.Helper()
	d, err := DescriptorForTile(name)
	if err != nil {
		t.Fatalf("DescriptorForTile(%q): %v", name, err)
	}
	return d
}

func TestIndexHalfOpenContainment(t *testing.T) {
	idx := NewIndex()
	idx.Add(descriptorFor(t, "N46W113")) // [46,47) × [-113,-112)

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"interior", 46.5, -112.5, true},
		{"min lat edge", 46.0, -112.5, true},
		{"min lon edge", 46.5, -113.0, true},
		{"southwest corner", 46.0, -113.0, true},
		{"max lat edge", 47.0, -112.5, false},
		{"max lon edge", 46.5, -112.0, false},
		{"northeast corner", 47.0, -112.0, false},
		{"outside", 10, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := idx.FindContaining(tt.lat, tt.lon)
			if got != tt.want {
				t.Errorf("FindContaining(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestIndexAddIdempotent(t *testing.T) {
	idx := NewIndex()
	d := descriptorFor(t, "N46W113")
	idx.Add(d)
	idx.Add(d)
	idx.Add(d)
	if idx.Len() != 1 {
		t.Errorf("Len() = %d after re-adding the same key, want 1", idx.Len())
	}
}

func TestIndexConcurrentAddFind(t *testing.T) {
	idx := NewIndex()
	names := []string{"N46W113", "N46W114", "N47W113", "S13E044", "N00E000"}
	descriptors := make([]Descriptor, len(names))
	for i, n := range names {
		descriptors[i] = descriptorFor(t, n)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for _, d := range descriptors {
				idx.Add(d)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				idx.FindContaining(46.5, -112.5)
				idx.Len()
			}
		}()
	}
	wg.Wait()

	if idx.Len() != len(names) {
		t.Errorf("Len() = %d, want %d", idx.Len(), len(names))
	}
	if _, ok := idx.FindContaining(46.5, -112.5); !ok {
		t.Error("N46W113 not findable after concurrent adds")
	}
}
