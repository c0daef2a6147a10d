package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/config"
	"hackmate/pkg/response"
)

type panicRoutes struct{}

func (panicRoutes) RegisterRoutes(router gin.IRouter) {
	router.GET("/boom", func(c *gin.Context) { panic("boom") })
}

func testRouter(ready func(context.Context) error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"}))
	return newRouter(routerDeps{
		Config:   config.Config{Env: "test", CORS: config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gatherer: reg,
		Ready:    ready,
		Handlers: []routeRegistrar{panicRoutes{}},
	})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_Health(t *testing.T) {
	r := testRouter(func(context.Context) error { return errors.New("db down") })

	require.Equal(t, http.StatusOK, get(r, "/livez").Code)
	require.Equal(t, http.StatusServiceUnavailable, get(r, "/readyz").Code)
}

func TestRouter_Metrics(t *testing.T) {
	r := testRouter(nil)

	w := get(r, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "router_test_total"))
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	r := testRouter(nil)

	w := get(r, "/nope")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "route not found", resp.Message)
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := testRouter(nil)

	w := get(r, "/boom")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_CORS(t *testing.T) {
	r := testRouter(nil)

	req := httptest.NewRequest(http.MethodOptions, "/livez", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
