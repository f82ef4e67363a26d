package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/talkincode/storefront/internal/apperr"
)

func TestRequestLoggerRecordsSentStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler
	e.Use(requestLogger())
	e.POST("/customers", func(c echo.Context) error {
		return apperr.Conflict("Email already in use")
	})
	e.GET("/customers", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{})
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/customers", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":"CONFLICT","message":"Email already in use"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.EqualValues(t, http.StatusBadRequest, entries[0].ContextMap()["status"])
	assert.Contains(t, entries[0].ContextMap(), "error")
	assert.EqualValues(t, http.StatusOK, entries[1].ContextMap()["status"])
}
