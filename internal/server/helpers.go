package server

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"unicode"

	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit  = 100
	defaultThreadsLimit = 50
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "threadId" -> "thread ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the caller set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	userID, _ := middleware.UserIDFrom(c)
	return userID
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// respondError writes err with its mapped status. Anything that is not an
// AppError is logged and reported as INTERNAL_ERROR without details.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return models.RespondWithError(c, status, &models.AppError{Message: fiberErr.Message})
		}
		err = models.NewInternalError(err)
	}

	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// formFile returns the uploaded file for field, or nil when the request is
// not multipart or carries no such file.
func formFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// storeUpload saves the file in field through the upload service and returns
// its stored name, or "" when no file was sent.
func (s *Server) storeUpload(c *fiber.Ctx, field string) (string, error) {
	fh := formFile(c, field)
	if fh == nil {
		return "", nil
	}
	if fh.Size > s.uploadService.MaxSizeBytes() {
		return "", models.NewValidationError("File too large")
	}

	f, err := fh.Open()
	if err != nil {
		return "", models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, s.uploadService.MaxSizeBytes()+1))
	if err != nil {
		return "", models.NewValidationError("Unable to read uploaded file")
	}

	return s.uploadService.Save(c.UserContext(), service.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
}
