package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yichya/rss-pipe/app/cfg"
	"github.com/yichya/rss-pipe/app/database"
	"github.com/yichya/rss-pipe/app/fever"
	"github.com/yichya/rss-pipe/app/metrics"
	"github.com/yichya/rss-pipe/app/pipe"
	"github.com/yichya/rss-pipe/app/proxy"
	"github.com/yichya/rss-pipe/app/push"
	"github.com/yichya/rss-pipe/app/transform"
)

func newTestServer(t *testing.T) (*gin.Engine, *database.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg.Set(&cfg.Cfg{FeverPath: "/fever"})

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Expected no error opening database, got: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Expected no error running migrations, got: %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry, func() float64 { return 0 })

	gateway, err := proxy.NewGateway("")
	if err != nil {
		t.Fatalf("Expected no error creating gateway, got: %v", err)
	}

	p := pipe.NewPipe(db, gateway, push.NewClient(""), collector, transform.NewEngine(""))
	t.Cleanup(p.Stop)

	handler := NewHandler(p, metrics.Handler(registry))
	router := NewServer(handler, fever.NewHandler(db, ""))

	return router, db
}

func TestCaptureRoutePassesOriginThrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			t.Errorf("Expected origin path /feed.xml, got: %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("Expected query passed to origin, got: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("X-Origin", "yes")
		w.Write([]byte("<rss/>"))
	}))
	defer origin.Close()

	router, _ := newTestServer(t)

	originURL, _ := url.Parse(origin.URL)
	req := httptest.NewRequest("GET", "/http/"+originURL.Host+"/feed.xml?page=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", rec.Code)
	}
	if rec.Body.String() != "<rss/>" {
		t.Errorf("Expected origin body passed through, got: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Origin") != "yes" {
		t.Error("Expected origin headers passed through")
	}
	if rec.Header().Get("Content-Type") != "application/xml" {
		t.Errorf("Expected origin content type, got: %s", rec.Header().Get("Content-Type"))
	}
}

func TestCaptureRouteGatewayFailure(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/http/127.0.0.1:1/feed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 for unreachable origin, got: %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("Expected error text in the 502 body")
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/something-else", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got: %d", rec.Code)
	}
	if rec.Body.String() != "not found" {
		t.Errorf("Expected 'not found' body, got: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, metric := range []string{
		`rss_pipe_status_code_count{status_code="200"}`,
		"rss_pipe_error_count",
		"rss_pipe_unread_count",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected %s in metrics output, got: %s", metric, body)
		}
	}
}

func TestInvokeRouteReturnsTransformOutput(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/invoke/alerts", strings.NewReader("raw input"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", rec.Code)
	}
	if rec.Body.String() != "raw input" {
		t.Errorf("Expected passthrough transform output, got: %s", rec.Body.String())
	}
}

func TestFeverMountedOnConfiguredPath(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/fever?api", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 from Fever endpoint, got: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"api_version":3`) {
		t.Errorf("Expected Fever base response, got: %s", rec.Body.String())
	}
}
