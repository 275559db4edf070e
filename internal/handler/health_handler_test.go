package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthRouter(checks map[string]CheckFunc) *gin.Engine {
	router := gin.New()
	NewHealthHandler(checks).RegisterRoutes(router)
	return router
}

func okCheck(context.Context) error { return nil }

func TestHealthHandler(t *testing.T) {
	t.Run("healthy when every dependency answers", func(t *testing.T) {
		router := healthRouter(map[string]CheckFunc{"database": okCheck, "redis": okCheck})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeBody[HealthResponse](t, w)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, Version, response.Version)
		assert.Equal(t, map[string]string{"database": "healthy", "redis": "healthy"}, response.Services)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unhealthy when a dependency fails", func(t *testing.T) {
		router := healthRouter(map[string]CheckFunc{
			"database": okCheck,
			"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		response := decodeBody[HealthResponse](t, w)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "healthy", response.Services["database"])
		assert.Equal(t, "unhealthy", response.Services["redis"])

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "not ready")
	})

	t.Run("live never checks dependencies", func(t *testing.T) {
		router := healthRouter(map[string]CheckFunc{
			"database": func(context.Context) error { return errors.New("down") },
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alive")
	})
}
