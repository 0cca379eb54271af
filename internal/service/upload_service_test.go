package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"circle/internal/config"
	"circle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestUploadService(t *testing.T) *UploadService {
	t.Helper()
	svc := NewUploadService(&config.Config{UploadDir: t.TempDir(), UploadMaxSizeMB: 1})
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return svc
}

func TestUploadService_Save(t *testing.T) {
	svc := newTestUploadService(t)

	name, err := svc.Save(context.Background(), UploadInput{
		Filename:    "Cat.PNG",
		ContentType: "image/png",
		Content:     pngBytes(t),
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^1700000000123-[0-9a-f]{8}\.png$`), name)

	stored, err := os.ReadFile(filepath.Join(svc.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), stored)

	svc.Remove(name)
	_, err = os.Stat(filepath.Join(svc.Dir(), name))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadService_Save_Rejects(t *testing.T) {
	svc := newTestUploadService(t)
	valid := pngBytes(t)

	tests := []struct {
		name string
		in   UploadInput
	}{
		{name: "empty", in: UploadInput{Filename: "a.png"}},
		{name: "too large", in: UploadInput{Filename: "a.png", Content: make([]byte, 2*1024*1024)}},
		{name: "disallowed extension", in: UploadInput{Filename: "a.gif", Content: valid}},
		{name: "not an image", in: UploadInput{Filename: "a.jpg", Content: []byte("plain text pretending")}},
		{name: "extension mismatch", in: UploadInput{Filename: "a.webp", Content: valid}},
		{name: "non-image content type", in: UploadInput{Filename: "a.png", ContentType: "text/html", Content: valid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tt.in)
			assertAppErrorCode(t, err, models.CodeValidation)
		})
	}

	entries, err := os.ReadDir(svc.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadService_RemoveIgnoresUnsafeNames(t *testing.T) {
	svc := newTestUploadService(t)
	outside := filepath.Join(filepath.Dir(svc.Dir()), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	t.Cleanup(func() { _ = os.Remove(outside) })

	svc.Remove("../keep.txt")
	svc.Remove("")

	_, err := os.Stat(outside)
	assert.NoError(t, err)
}
