package filehandler

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCalculateDimensions(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{2000, 1000, 768, 768, 384},
		{1000, 2000, 768, 384, 768},
		{500, 300, 768, 500, 300},
		{768, 768, 768, 768, 768},
		{4000, 2, 768, 768, 1},
	}
	for _, tt := range tests {
		w, h := calculateDimensions(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("calculateDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestPrepareImageDownsamples(t *testing.T) {
	in := &ImageFile{Data: pngBytes(t, 1600, 800), MIMEType: "image/png"}

	out, err := PrepareImage(in, 768)
	if err != nil {
		t.Fatalf("PrepareImage: %v", err)
	}
	if out.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q, want image/jpeg", out.MIMEType)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 768 || cfg.Height != 384 {
		t.Errorf("output is %dx%d, want 768x384", cfg.Width, cfg.Height)
	}
}

func TestPrepareImageSmallIsRecompressed(t *testing.T) {
	in := &ImageFile{Data: pngBytes(t, 100, 60), MIMEType: "image/png"}

	out, err := PrepareImage(in, 768)
	if err != nil {
		t.Fatalf("PrepareImage: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 60 {
		t.Errorf("output is %dx%d, want 100x60", cfg.Width, cfg.Height)
	}
}

func TestPrepareImageNoLimit(t *testing.T) {
	in := &ImageFile{Data: []byte("not an image"), MIMEType: "image/png"}
	out, err := PrepareImage(in, 0)
	if err != nil || out != in {
		t.Errorf("PrepareImage with no limit should return the input, got %v, %v", out, err)
	}
}

func TestPrepareImageInvalid(t *testing.T) {
	if _, err := PrepareImage(&ImageFile{Data: []byte("garbage")}, 768); err == nil {
		t.Error("expected decode error")
	}
}

func TestDecodeBase64Image(t *testing.T) {
	raw := pngBytes(t, 4, 4)
	in := &ImageFile{Data: raw}

	got, err := DecodeBase64Image("data:image/png;base64,"+in.Base64(), "")
	if err != nil {
		t.Fatalf("DecodeBase64Image: %v", err)
	}
	if got.MIMEType != "image/png" || !bytes.Equal(got.Data, raw) {
		t.Errorf("unexpected result: mime=%q len=%d", got.MIMEType, len(got.Data))
	}

	got, err = DecodeBase64Image(in.Base64(), "")
	if err != nil {
		t.Fatalf("DecodeBase64Image without prefix: %v", err)
	}
	if got.MIMEType != "image/png" {
		t.Errorf("sniffed MIME = %q, want image/png", got.MIMEType)
	}

	for _, bad := range []string{"", "data:image/png;base64", "%%%"} {
		if _, err := DecodeBase64Image(bad, ""); err == nil {
			t.Errorf("DecodeBase64Image(%q) should fail", bad)
		}
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "mini.png")
	if err := os.WriteFile(path, pngBytes(t, 8, 8), 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", img.MIMEType)
	}

	sniffed := filepath.Join(dir, "mini.bin")
	if err := os.WriteFile(sniffed, pngBytes(t, 8, 8), 0o644); err != nil {
		t.Fatal(err)
	}
	if img, err := LoadImage(sniffed); err != nil || img.MIMEType != "image/png" {
		t.Errorf("LoadImage(sniffed) = %v, %v", img, err)
	}

	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(text); err == nil {
		t.Error("expected unsupported format error")
	}
	if _, err := LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
