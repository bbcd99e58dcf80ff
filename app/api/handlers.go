package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yichya/rss-pipe/app/pipe"
)

type Handler struct {
	pipe    *pipe.Pipe
	metrics http.Handler
}

func NewHandler(p *pipe.Pipe, metricsHandler http.Handler) *Handler {
	return &Handler{pipe: p, metrics: metricsHandler}
}

func (h *Handler) CaptureHTTP(c *gin.Context) {
	h.capture(c, "http")
}

func (h *Handler) CaptureHTTPS(c *gin.Context) {
	h.capture(c, "https")
}

// capture reassembles the target URL from the wildcard path suffix, forwards
// the client request through the gateway and writes the captured response
// back unmodified
func (h *Handler) capture(c *gin.Context, scheme string) {
	target := scheme + "://" + strings.TrimPrefix(c.Param("target"), "/")

	captured := h.pipe.Fetch(target, c.Request)

	for name, values := range captured.Header {
		// The body is re-read and re-counted on this side
		if name == "Content-Length" || name == "Transfer-Encoding" {
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(name, value)
		}
	}

	c.Writer.WriteHeader(captured.StatusCode)
	c.Writer.Write(captured.Body)
}

func (h *Handler) GetMetrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// InvokeTransform runs the named transform over the request body and injects
// the result into the ingestion queue as a synthesized capture
func (h *Handler) InvokeTransform(c *gin.Context) {
	input, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "failed to read request body")
		return
	}

	output := h.pipe.Invoke(c.Request.Context(), c.Param("id"), string(input))

	c.Data(http.StatusOK, "application/json", []byte(output))
}
