package tessera

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenFirst(t *testing.T) {
	dir := t.TempDir()
	img := solid(4, NewRGB(10, 20, 30))
	losslessName, err := SaveEncoded(dir, "sheet", Lossless, img, 0)
	if err != nil {
		t.Fatal(err)
	}
	lossyName, err := SaveEncoded(dir, "sheet", Lossy, img, 90)
	if err != nil {
		t.Fatal(err)
	}
	lossless := EncodingCandidate{Path: filepath.Join(dir, losslessName), Encoding: Lossless}
	lossy := EncodingCandidate{Path: filepath.Join(dir, lossyName), Encoding: Lossy}
	absent := EncodingCandidate{Path: filepath.Join(dir, "absent.png"), Encoding: Lossless}

	tests := []struct {
		name         string
		candidates   []EncodingCandidate
		want         Encoding
		wantWarnings int
	}{
		{"lossless first", []EncodingCandidate{lossless, lossy}, Lossless, 0},
		{"fallback", []EncodingCandidate{absent, lossy}, Lossy, 1},
		{"empty path skipped", []EncodingCandidate{{Encoding: Lossless}, lossy}, Lossy, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := &Warnings{}
			_, used, err := OpenFirst(tt.candidates, warnings)
			if err != nil {
				t.Fatal(err)
			}
			if used.Encoding != tt.want {
				t.Errorf("Used %s, want %s", used.Encoding, tt.want)
			}
			if warnings.Len() != tt.wantWarnings {
				t.Errorf("Got %d warnings, want %d", warnings.Len(), tt.wantWarnings)
			}
		})
	}

	warnings := &Warnings{}
	if _, _, err := OpenFirst([]EncodingCandidate{absent}, warnings); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("Expected ErrNoCandidate, got %v", err)
	}
	if warnings.Count(MissingResource) != 1 {
		t.Errorf("Expected a warning for the absent file")
	}
}

func TestSaveImageUnsupported(t *testing.T) {
	if err := SaveImage(filepath.Join(t.TempDir(), "img.gif"), solid(2, NewRGB(0, 0, 0)), 0); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}

func TestEncodingExt(t *testing.T) {
	if Lossless.Ext() != ".png" || Lossy.Ext() != ".jpg" {
		t.Errorf("Unexpected extensions %s and %s", Lossless.Ext(), Lossy.Ext())
	}
}
