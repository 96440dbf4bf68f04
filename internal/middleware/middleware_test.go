package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auth-core/internal/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Пакет тестов для HTTP-middleware:
//  - RequestLogger: проброс/генерация X-Request-Id, обогащённый логгер
//    в контексте запроса, итоговая строка со статусом;
//  - Recover: перехват паники, нейтральный 500, запись в лог;
//  - WithTimeout: установка дедлайна при его отсутствии и сохранение
//    уже существующего.

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func doGet(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	r := newRouter(RequestLogger(l))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	resp := doGet(r, "/ping", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	// Итоговая строка содержит статус и request_id.
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "http", line["msg"])
	require.EqualValues(t, http.StatusOK, line["status"])
	require.Equal(t, resp.Header().Get("X-Request-Id"), line["request_id"])
	require.Equal(t, "/ping", line["path"])
}

func TestRequestLogger_PropagatesIncomingRequestID(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := newRouter(RequestLogger(l))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	resp := doGet(r, "/ping", map[string]string{"X-Request-Id": "req-42"})
	require.Equal(t, "req-42", resp.Header().Get("X-Request-Id"))
}

func TestRequestLogger_PutsLoggerIntoContext(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	var got *slog.Logger
	r := newRouter(RequestLogger(l))
	r.GET("/ctx", func(c *gin.Context) {
		got = log.From(c.Request.Context())
		c.Status(http.StatusOK)
	})

	doGet(r, "/ctx", nil)
	require.NotNil(t, got)
	require.NotEqual(t, slog.Default(), got)
}

func TestRecover_PanicTurnsInto500(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	r := newRouter(Recover(l))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	resp := doGet(r, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, resp.Body.String())

	// Паника залогирована со стеком.
	out := buf.String()
	require.Contains(t, out, "panic_recovered")
	require.Contains(t, out, "kaboom")
	require.Contains(t, out, "stack")
}

func TestRecover_NoPanic_PassesThrough(t *testing.T) {
	r := newRouter(Recover(nil))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	resp := doGet(r, "/ok", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ok", resp.Body.String())
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	r := newRouter(WithTimeout(5 * time.Second))

	var hasDeadline bool
	r.GET("/dl", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	doGet(r, "/dl", nil)
	require.True(t, hasDeadline)
}

func TestWithTimeout_KeepsExistingDeadline(t *testing.T) {
	r := newRouter(
		WithTimeout(time.Second),
		WithTimeout(time.Hour), // второй слой не должен перетереть дедлайн первого
	)

	var deadline time.Time
	r.GET("/dl", func(c *gin.Context) {
		deadline, _ = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	doGet(r, "/dl", nil)
	require.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
}
