// Package api wires the HTTP surface of the proxy: the capture routes, the
// Fever sync endpoint, the metrics exporter and the transform invocation
// endpoint.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yichya/rss-pipe/app/cfg"
	"github.com/yichya/rss-pipe/app/fever"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, feverHandler *fever.Handler) *gin.Engine {
	if cfg.Get().Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, feverHandler)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, feverHandler *fever.Handler) {
	// Capture routes: the wildcard suffix is reassembled into the target URL
	r.GET("/http/*target", handler.CaptureHTTP)
	r.POST("/http/*target", handler.CaptureHTTP)
	r.GET("/https/*target", handler.CaptureHTTPS)
	r.POST("/https/*target", handler.CaptureHTTPS)

	r.GET("/metrics", handler.GetMetrics)

	r.POST("/invoke/:id", handler.InvokeTransform)

	if feverPath := cfg.Get().FeverPath; feverPath != "" {
		feverHandler.Register(r, feverPath)
	}

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})
}
