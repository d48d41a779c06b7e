package api

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestGzipRequestMiddlewareDecompresses(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(gzipBytes(t, `{"title":"zipped"}`)))
	req.Header.Set(echo.HeaderContentEncoding, "identity, gzip")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	handler := GzipRequestMiddleware()(func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		got = string(body)
		return err
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got != `{"title":"zipped"}` {
		t.Fatalf("unexpected body: %q", got)
	}
	if c.Request().Header.Get(echo.HeaderContentEncoding) != "" {
		t.Fatal("expected content-encoding header to be removed")
	}
}

func TestGzipRequestMiddlewareRejectsInvalidPayload(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	c := e.NewContext(req, httptest.NewRecorder())

	err := GzipRequestMiddleware()(func(echo.Context) error { return nil })(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 http error, got %v", err)
	}
}

func TestRequireAuthSetsUserID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer alice")
	c := e.NewContext(req, httptest.NewRecorder())

	var seen string
	err := RequireAuth(mockAuth{})(func(c echo.Context) error {
		seen = userIDFrom(c)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if seen != "alice" {
		t.Fatalf("expected user id alice, got %q", seen)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	if err := RequireAuth(mockAuth{})(func(echo.Context) error {
		called = true
		return nil
	})(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if called {
		t.Fatal("next handler must not run without credentials")
	}
	if rec.Code != http.StatusUnauthorized || rec.Body.String() != "missing authorization header" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}
