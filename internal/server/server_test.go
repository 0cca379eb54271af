package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"circle/internal/config"
	"circle/internal/models"
	"circle/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func newTestEnv(t *testing.T, flags string, rdb *redis.Client) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Env:             "test",
		JWTSecret:       testJWTSecret,
		JWTTTLHours:     1,
		FeatureFlags:    flags,
		UploadDir:       t.TempDir(),
		UploadMaxSizeMB: 1,
	}
	db := testutil.NewTestDB(t)

	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.hub.Shutdown(context.Background()) })

	return &testEnv{server: s, app: s.App(), db: db}
}

// login creates a user and returns it with a bearer token.
func (e *testEnv) login(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user := testutil.CreateUser(t, e.db, username)
	token, err := e.server.tokens.Issue(user.ID, user.Username)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) (int, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

type formFileField struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files ...formFileField) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set(fiber.HeaderContentType, "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	return decode[models.ErrorResponse](t, body).Code
}

func longContent(n int) string {
	return strings.Repeat("x", n)
}
