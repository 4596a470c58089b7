package smol

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeLabel(t *testing.T) {
	cases := map[string]string{
		"":              "unlabeled",
		"   ":           "unlabeled",
		"level-1.start": "level-1.start",
		"boss fight!":   "boss_fight_",
		"../etc/passwd": ".._etc_passwd",
		"héro":          "h_ro",
	}
	for in, want := range cases {
		if got := sanitizeLabel(in); got != want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnpremultiply(t *testing.T) {
	pixels := []byte{
		128, 64, 0, 128,    // half-transparent
		255, 255, 255, 255, // opaque
		0, 0, 0, 0,         // transparent
	}
	img := unpremultiply(pixels, 3, 1)
	want := []byte{255, 127, 0, 128, 255, 255, 255, 255, 0, 0, 0, 0}
	for i := range want {
		if img.Pix[i] != want[i] {
			t.Errorf("Pix[%d] = %d, want %d", i, img.Pix[i], want[i])
		}
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	src := unpremultiply([]byte{10, 20, 30, 255}, 1, 1)
	if err := writePNG(path, src); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, _ := img.At(0, 0).RGBA(); r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}

	if err := writePNG(filepath.Join(t.TempDir(), "missing", "shot.png"), src); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
