package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"circle/internal/config"
	"circle/internal/middleware"
	"circle/internal/models"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadDir       = "uploads"
	DefaultMaxUploadSizeMB = 5
)

var allowedUploadExts = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".webp": "webp",
}

type UploadInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// UploadService stores user images on local disk under uploadDir.
type UploadService struct {
	uploadDir          string
	maxUploadSizeBytes int64
	now                func() time.Time
}

func NewUploadService(cfg *config.Config) *UploadService {
	uploadDir := DefaultUploadDir
	maxUploadSizeMB := DefaultMaxUploadSizeMB

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.UploadMaxSizeMB > 0 {
			maxUploadSizeMB = cfg.UploadMaxSizeMB
		}
	}

	return &UploadService{
		uploadDir:          uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		now:                time.Now,
	}
}

// Dir is the directory files are written to and served from.
func (s *UploadService) Dir() string { return s.uploadDir }

// MaxSizeBytes is the largest accepted upload.
func (s *UploadService) MaxSizeBytes() int64 { return s.maxUploadSizeBytes }

// Save validates an image and writes it as <unix-millis>-<uuid8><ext>.
// It returns the stored file name, which is also its path under /uploads.
func (s *UploadService) Save(_ context.Context, in UploadInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	wantFormat, ok := allowedUploadExts[ext]
	if !ok {
		return "", models.NewValidationError("Only .jpg, .jpeg, .png and .webp images are allowed")
	}

	if provided := normalizeContentType(in.ContentType); provided != "" && provided != "application/octet-stream" && !strings.HasPrefix(provided, "image/") {
		return "", models.NewValidationError("Invalid image type")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if format != wantFormat {
		return "", models.NewValidationError("Image content does not match its extension")
	}
	if detected := http.DetectContentType(in.Content); format != "webp" && !strings.HasPrefix(detected, "image/") {
		return "", models.NewValidationError("Invalid image type")
	}

	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString()[:8], ext)
	if err := writeBytesToFile(filepath.Join(s.uploadDir, name), in.Content); err != nil {
		return "", models.NewInternalError(err)
	}
	return name, nil
}

// Remove deletes a stored file. Unknown or unsafe names are ignored.
func (s *UploadService) Remove(name string) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return
	}
	if err := os.Remove(filepath.Join(s.uploadDir, name)); err != nil && !os.IsNotExist(err) {
		middleware.Logger.Warn("failed to remove upload", "file", name, "error", err.Error())
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
