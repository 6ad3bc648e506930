package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := imaging.New(w, h, color.NRGBA{R: 255, G: 215, A: 255})
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	b64 := base64.StdEncoding.EncodeToString(png)

	tests := []struct {
		name      string
		input     string
		wantType  string
		wantData  []byte
		wantError bool
	}{
		{
			name:     "base64 png",
			input:    "data:image/png;base64," + b64,
			wantType: "image/png",
			wantData: png,
		},
		{
			name:     "unpadded base64",
			input:    "data:image/png;base64," + strings.TrimRight(base64.StdEncoding.EncodeToString([]byte("ab")), "="),
			wantType: "image/png",
			wantData: []byte("ab"),
		},
		{
			name:     "percent encoded with params",
			input:    "data:text/plain;charset=utf-8,hello%20ink",
			wantType: "text/plain",
			wantData: []byte("hello ink"),
		},
		{
			name:     "default media type",
			input:    "data:,abc",
			wantType: "text/plain",
			wantData: []byte("abc"),
		},
		{
			name:     "upper case media type",
			input:    "data:IMAGE/PNG;base64," + b64,
			wantType: "image/png",
			wantData: png,
		},
		{name: "no prefix", input: "image/png;base64,AAAA", wantError: true},
		{name: "no comma", input: "data:image/png;base64", wantError: true},
		{name: "bad base64", input: "data:image/png;base64,!!!", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.input)
			if tt.wantError {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Errorf("error = %v, want ErrInvalidDataURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL failed: %v", err)
			}
			if got.MediaType != tt.wantType {
				t.Errorf("MediaType = %q, want %q", got.MediaType, tt.wantType)
			}
			if !bytes.Equal(got.Data, tt.wantData) {
				t.Errorf("Data = %v, want %v", got.Data, tt.wantData)
			}
		})
	}
}

func TestDataURL_Extension(t *testing.T) {
	tests := map[string]string{
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
		"text/plain":    ".bin",
	}
	for mediaType, want := range tests {
		if got := (&DataURL{MediaType: mediaType}).Extension(); got != want {
			t.Errorf("Extension(%s) = %q, want %q", mediaType, got, want)
		}
	}
}

func TestDescribe(t *testing.T) {
	data := testPNG(t, 40, 12)

	info, err := Describe(data)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if info.Format != "png" || info.Width != 40 || info.Height != 12 || info.Bytes != len(data) {
		t.Errorf("Describe() = %+v", info)
	}

	if _, err := Describe([]byte("not an image")); err == nil {
		t.Error("Expected error for non-image data")
	}
}

func TestThumbnail(t *testing.T) {
	thumb, err := Thumbnail(testPNG(t, 200, 50), 100, 100)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}

	info, err := Describe(thumb)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if info.Width != 100 || info.Height != 25 {
		t.Errorf("thumbnail = %dx%d, want 100x25", info.Width, info.Height)
	}
}

func TestFileName(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	if got := FileName(ts); got != "NameYourInk_1700000000123.png" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestObjectName(t *testing.T) {
	name := ObjectName("261", ".png")

	dir, file := filepath.Split(name)
	if dir != "generated/261/" {
		t.Errorf("dir = %q, want generated/261/", dir)
	}
	if _, err := uuid.Parse(strings.TrimSuffix(file, ".png")); err != nil {
		t.Errorf("object file %q is not a uuid: %v", file, err)
	}
	if ObjectName("261", ".png") == name {
		t.Error("ObjectName should be unique per call")
	}
	if got := ObjectName("", ""); !strings.HasPrefix(got, "generated/unknown/") || !strings.HasSuffix(got, ".png") {
		t.Errorf("ObjectName(\"\", \"\") = %q", got)
	}
}

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := NewFileSink(dir)
	data := testPNG(t, 4, 4)

	path, err := sink.Save(context.Background(), "../escape/NameYourInk_1.png", data, "image/png")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "NameYourInk_1.png") {
		t.Errorf("path = %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("saved data differs")
	}
}

func TestMinioSink(t *testing.T) {
	endpoint := os.Getenv("NYI_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("NYI_TEST_MINIO_ENDPOINT not set")
	}

	ctx := context.Background()
	sink, err := NewMinioSink(ctx, MinioConfig{
		Endpoint:   endpoint,
		AccessKey:  envOr("NYI_TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:  envOr("NYI_TEST_MINIO_SECRET_KEY", "minioadmin"),
		BucketName: "nyi-test",
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	name := ObjectName("261", ".png")
	got, err := sink.Save(ctx, name, testPNG(t, 2, 2), "image/png")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got != name {
		t.Errorf("Save() = %q, want %q", got, name)
	}
	if err := sink.Delete(ctx, name); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
