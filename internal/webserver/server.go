// Package webserver hosts the echo instance, its shared middleware and the
// route registration helpers used by the API packages.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	_ "github.com/talkincode/storefront/docs"
	"github.com/talkincode/storefront/internal/app"
)

const appContextKey = "appctx"

type WebServer struct {
	root     *echo.Echo
	api      *echo.Group
	gate     echo.MiddlewareFunc
	appCtx   app.AppContext
	registry *prometheus.Registry
}

var server *WebServer

// Init builds the echo server for appCtx and makes it the target of the
// Api* registration helpers.
func Init(appCtx app.AppContext) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.HTTPErrorHandler = httpErrorHandler
	e.Validator = newRequestValidator()

	registry := prometheus.NewRegistry()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "storefront",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appContextKey, appCtx)
			return next(c)
		}
	})

	server = &WebServer{
		root:     e,
		api:      api,
		gate:     AuthGate(appCtx.Tokens()),
		appCtx:   appCtx,
		registry: registry,
	}
	return server
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		// the error handler runs first so Status is the code actually sent
		HandleError:  true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("namespace", "http"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	})
}

// Handler returns the root http handler of the current server.
func Handler() http.Handler {
	return server.root
}

// Echo returns the echo instance of the current server.
func Echo() *echo.Echo {
	return server.root
}

// Auth returns the bearer token gate of the current server.
func Auth() echo.MiddlewareFunc {
	return server.gate
}

// EnforceOwnership reports whether customer scoped mutations must be made by
// that customer.
func EnforceOwnership() bool {
	return server.appCtx.Config().Web.EnforceOwnership
}

// GetAppContext returns the application context injected into /api requests.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(appContextKey).(app.AppContext)
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiPATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PATCH(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// Start serves until Shutdown is called.
func Start() error {
	cfg := server.appCtx.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.S().Infof("Prepare to start web server on %s", addr)
	server.root.Server.ReadHeaderTimeout = 10 * time.Second
	if err := server.root.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func Shutdown(ctx context.Context) error {
	return server.root.Shutdown(ctx)
}
