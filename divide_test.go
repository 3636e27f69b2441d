package tessera

import (
	"image"
	"testing"
)

func TestNewSheetLayout(t *testing.T) {
	grid := MosaicGrid{Width: 6, Height: 4, TileSize: 8}
	layout, err := NewSheetLayout(grid, 2)
	if err != nil {
		t.Fatal(err)
	}
	if layout.SheetWidth != 3 || layout.SheetHeight != 2 {
		t.Errorf("Sheet size: got %dx%d, want 3x2", layout.SheetWidth, layout.SheetHeight)
	}
	if layout.NumSheets() != 4 || layout.TilesPerSheet() != 6 {
		t.Errorf("Got %d sheets with %d tiles", layout.NumSheets(), layout.TilesPerSheet())
	}
	if got := layout.Cells(1, 1); got != image.Rect(3, 2, 6, 4) {
		t.Errorf("Cells(1, 1): got %v", got)
	}
	if got := layout.LocalOffset(4); got != image.Pt(8, 8) {
		t.Errorf("LocalOffset(4): got %v", got)
	}
	if got := layout.SheetIndex(1, 1); got != 3 {
		t.Errorf("SheetIndex(1, 1): got %d, want 3", got)
	}
}

func TestNewSheetLayoutInvalid(t *testing.T) {
	tests := []struct {
		name string
		grid MosaicGrid
		g    int
	}{
		{"not divisible", MosaicGrid{Width: 5, Height: 4, TileSize: 2}, 2},
		{"zero sheets", MosaicGrid{Width: 4, Height: 4, TileSize: 2}, 0},
		{"more sheets than cells", MosaicGrid{Width: 2, Height: 2, TileSize: 2}, 4},
		{"invalid grid", MosaicGrid{Width: 0, Height: 4, TileSize: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSheetLayout(tt.grid, tt.g); !IsConfigError(err) {
				t.Errorf("Expected ConfigError, got %v", err)
			}
		})
	}
}

func TestPlanSheetsPerSide(t *testing.T) {
	tests := []struct {
		name    string
		grid    MosaicGrid
		max     int
		want    int
		wantErr bool
	}{
		{"single sheet", MosaicGrid{Width: 4, Height: 4, TileSize: 1}, 16, 1, false},
		{"two per side", MosaicGrid{Width: 4, Height: 4, TileSize: 1}, 4, 2, false},
		{"web tiles", MosaicGrid{Width: 80, Height: 45, TileSize: 1}, 400, 5, false},
		{"not possible", MosaicGrid{Width: 7, Height: 5, TileSize: 1}, 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanSheetsPerSide(tt.grid, tt.max)
			if tt.wantErr {
				if !IsConfigError(err) {
					t.Errorf("Expected ConfigError, got %d, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Got %d sheets per side, want %d", got, tt.want)
			}
		})
	}
}
