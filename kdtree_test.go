package tessera

import (
	"math/rand"
	"testing"
)

func TestKDTreeAgreesWithColorIndex(t *testing.T) {
	tests := []struct {
		name    string
		entries func(r *rand.Rand) []IndexEntry
	}{
		{"random colors", func(r *rand.Rand) []IndexEntry { return randomEntries(r, 500) }},
		{"many duplicates", func(r *rand.Rand) []IndexEntry {
			entries := make([]IndexEntry, 300)
			for i := range entries {
				entries[i] = IndexEntry{
					ID:    ImageID(i),
					Color: ColorVector{float64(r.Intn(4) * 64), float64(r.Intn(4) * 64), float64(r.Intn(4) * 64)},
				}
			}
			return entries
		}},
		{"single entry", func(r *rand.Rand) []IndexEntry {
			return []IndexEntry{{ID: 7, Color: ColorVector{1, 2, 3}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rand.New(rand.NewSource(1))
			index, err := NewColorIndex(tt.entries(r))
			if err != nil {
				t.Fatal(err)
			}
			tree := NewKDTreeIndex(index)
			if tree.Len() != index.Len() {
				t.Fatalf("Tree contains %d entries, index %d", tree.Len(), index.Len())
			}
			for i := 0; i < 1000; i++ {
				// integer targets between the palette colors produce exact ties
				target := ColorVector{float64(r.Intn(256)), float64(r.Intn(256)), float64(r.Intn(256))}
				want := index.FindNearest(target)
				if got := tree.FindNearest(target); got != want {
					t.Fatalf("FindNearest(%v): tree returned %d, index %d", target, got, want)
				}
			}
		})
	}
}
