package tessera

import (
	"image"
	"image/color"
	"testing"
)

// solid returns a size × size image filled with c.
func solid(size int, c RGB) *image.NRGBA {
	return FilledImage(size, size, c)
}

// gradientTile returns an opaque tile whose pixels all differ, so a tile
// moved to a wrong position can be detected.
func gradientTile(size int, seed uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: seed, G: uint8(x * 16), B: uint8(y * 16), A: 255})
		}
	}
	return img
}

func samePixels(t *testing.T, got image.Image, gotRect image.Rectangle, want image.Image, wantRect image.Rectangle) bool {
	t.Helper()
	if gotRect.Dx() != wantRect.Dx() || gotRect.Dy() != wantRect.Dy() {
		t.Errorf("Region sizes differ: %v and %v", gotRect, wantRect)
		return false
	}
	for y := 0; y < gotRect.Dy(); y++ {
		for x := 0; x < gotRect.Dx(); x++ {
			g := color.NRGBAModel.Convert(got.At(gotRect.Min.X+x, gotRect.Min.Y+y))
			w := color.NRGBAModel.Convert(want.At(wantRect.Min.X+x, wantRect.Min.Y+y))
			if g != w {
				t.Errorf("Pixel (%d, %d) differs: got %v, want %v", x, y, g, w)
				return false
			}
		}
	}
	return true
}

func TestIntMinMax(t *testing.T) {
	if got := IntMax(3, 7, -1); got != 7 {
		t.Errorf("IntMax: got %d, want 7", got)
	}
	if got := IntMin(3, 7, -1); got != -1 {
		t.Errorf("IntMin: got %d, want -1", got)
	}
	if got := IntMax(4); got != 4 {
		t.Errorf("IntMax with one argument: got %d, want 4", got)
	}
}

func TestNumWorkers(t *testing.T) {
	tests := []struct {
		routines, jobs, want int
	}{
		{4, 100, 4},
		{8, 3, 3},
		{0, 10, 1},
		{4, 0, 4},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := numWorkers(tt.routines, tt.jobs); got != tt.want {
			t.Errorf("numWorkers(%d, %d): got %d, want %d", tt.routines, tt.jobs, got, tt.want)
		}
	}
}

func TestProgressMessage(t *testing.T) {
	tests := []struct {
		num, max, step int
		want           string
		ok             bool
	}{
		{10, 40, 10, "Tiles: 10 of 40 (25.0%)", true},
		{11, 40, 10, "", false},
		{40, 40, 7, "Tiles: 40 of 40 (100.0%)", true},
		{3, 40, -1, "Tiles: 3 of 40 (7.5%)", true},
		{5, 40, 0, "", false},
	}
	for _, tc := range tests {
		got, ok := progressMessage("Tiles", tc.num, tc.max, tc.step)
		if ok != tc.ok || got != tc.want {
			t.Errorf("progressMessage(%d, %d, %d) = %q, %v; expected %q, %v",
				tc.num, tc.max, tc.step, got, ok, tc.want, tc.ok)
		}
	}
}
