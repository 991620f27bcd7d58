package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/forumgram/forumgram/internal/guard"
	"github.com/forumgram/forumgram/internal/logger"
)

type echoHandler struct{}

func (echoHandler) Register(e *echo.Echo) {
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func serve(t *testing.T, srv *Server, method, path, token, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, token)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestGuardProtectsRoutes(t *testing.T) {
	g := guard.New(nil, "S1", []string{"10.0.0.1"})
	srv := NewServer(nil, ":0", g, echoHandler{})

	if rec := serve(t, srv, http.MethodGet, "/whoami", "S1", "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("allowed caller got %d, want 200", rec.Code)
	}
	if rec := serve(t, srv, http.MethodGet, "/whoami", "wrong", "10.0.0.1:5000"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret got %d, want 401", rec.Code)
	}
	if rec := serve(t, srv, http.MethodGet, "/whoami", "S1", "10.0.0.2:5000"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unlisted origin got %d, want 401", rec.Code)
	}
}

func TestGuardRejectsForgedForwardedHeader(t *testing.T) {
	g := guard.New(nil, "S1", []string{"10.0.0.1"})
	srv := NewServer(nil, ":0", g, echoHandler{})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.RemoteAddr = "203.0.113.9:4444"
	req.Header.Set(echo.HeaderAuthorization, "S1")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged forwarded header got %d, want 401", rec.Code)
	}
}

type contextLogHandler struct{}

func (contextLogHandler) Register(e *echo.Echo) {
	e.GET("/logged", func(c echo.Context) error {
		logger.FromContext(c.Request().Context()).Info("handled")
		return c.NoContent(http.StatusOK)
	})
}

func TestRequestScopedLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	g := guard.New(nil, "S1", []string{"10.0.0.1"})
	srv := NewServer(log, ":0", g, contextLogHandler{})

	if rec := serve(t, srv, http.MethodGet, "/logged", "S1", "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var handledLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "msg=handled") {
			handledLine = line
			break
		}
	}
	if handledLine == "" {
		t.Fatalf("handler log missing from output: %s", buf.String())
	}
	if !strings.Contains(handledLine, "method=GET") || !strings.Contains(handledLine, "path=/logged") {
		t.Errorf("request fields missing from handler log line: %s", handledLine)
	}
}

func TestLivenessSkipsGuard(t *testing.T) {
	g := guard.New(nil, "S1", []string{"10.0.0.1"})
	srv := NewServer(nil, ":0", g, echoHandler{})

	if rec := serve(t, srv, http.MethodGet, "/ping", "", "203.0.113.9:5000"); rec.Code == http.StatusUnauthorized {
		t.Fatalf("/ping should skip the guard, got %d", rec.Code)
	}
	if rec := serve(t, srv, http.MethodHead, "/health", "", "203.0.113.9:5000"); rec.Code == http.StatusUnauthorized {
		t.Fatalf("/health should skip the guard, got %d", rec.Code)
	}
}
