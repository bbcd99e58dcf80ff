// Package pipe implements the capture side of the forwarding proxy and the
// single-consumer ingestion pipeline behind it. Proxied responses pass
// through unmodified while a copy of each body is parsed as a syndication
// feed, persisted and fanned out as push notifications.
package pipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/yichya/rss-pipe/app/database"
	"github.com/yichya/rss-pipe/app/feed"
	"github.com/yichya/rss-pipe/app/metrics"
	"github.com/yichya/rss-pipe/app/proxy"
	"github.com/yichya/rss-pipe/app/transform"
)

type Pipe struct {
	db        *database.DB
	gateway   *proxy.Gateway
	parser    *feed.Parser
	notifier  Notifier
	collector metrics.Collector
	engine    transform.Engine
	queue     chan Payload
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewPipe(db *database.DB, gateway *proxy.Gateway, notifier Notifier,
	collector metrics.Collector, engine transform.Engine) *Pipe {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pipe{
		db:        db,
		gateway:   gateway,
		parser:    feed.NewParser(),
		notifier:  notifier,
		collector: collector,
		engine:    engine,
		queue:     make(chan Payload, QueueCapacity),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the single ingestion consumer. Payloads are processed
// strictly in enqueue order for the lifetime of the process.
func (p *Pipe) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run()
	}()
}

func (p *Pipe) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Fetch forwards the original client request to targetURL and captures the
// origin response. Gateway failures surface as a 502-class response carrying
// the error text; they are never retried here.
func (p *Pipe) Fetch(targetURL string, original *http.Request) *Captured {
	resp, err := p.gateway.Forward(targetURL, original)
	if err != nil {
		return p.gatewayFailure(targetURL, err)
	}
	return p.capture(targetURL, resp, false)
}

// Capture records metrics for the origin response, hands a copy of its body
// to the ingestion queue and returns the pass-through response for the
// client. Ingestion failures never affect the returned response.
func (p *Pipe) Capture(sourceURL string, resp *http.Response) *Captured {
	return p.capture(sourceURL, resp, false)
}

func (p *Pipe) capture(sourceURL string, resp *http.Response, recovery bool) *Captured {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Count only the 502 surfaced to the client, not the origin status
		return p.gatewayFailure(sourceURL, fmt.Errorf("failed to read origin response body: %w", err))
	}

	p.collector.RecordStatusCode(resp.StatusCode)

	p.enqueue(Payload{
		SourceURL:  sourceURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Recovery:   recovery,
	})

	return &Captured{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       append([]byte(nil), body...),
	}
}

// Invoke evaluates the named transform against the request body and feeds
// the result into the ingestion queue as a synthetic capture. The transform
// output is returned for the HTTP response; evaluation failure falls back to
// the untransformed input.
func (p *Pipe) Invoke(ctx context.Context, id, input string) string {
	output, err := p.engine.Run(ctx, id, input)
	if err != nil {
		slog.Error("Transform evaluation failed, passing input through", "transform", id, "error", err)
		output = input
	}

	p.enqueue(Payload{
		SourceURL:  fmt.Sprintf("rss-pipe://%s/%s", p.engine.Name(), id),
		StatusCode: http.StatusOK,
		Body:       []byte(output),
	})

	return output
}

// enqueue hands a payload to the consumer without ever blocking the caller.
// A full queue drops the payload: the loss is observable only through the
// error counter, never through the client-facing response.
func (p *Pipe) enqueue(payload Payload) {
	select {
	case p.queue <- payload:
	default:
		p.collector.RecordPipeError()
		slog.Warn("Ingestion queue full, dropping captured payload", "source", payload.SourceURL)
	}
}

func (p *Pipe) gatewayFailure(targetURL string, err error) *Captured {
	p.collector.RecordStatusCode(http.StatusBadGateway)
	slog.Error("Returned 502 handling feed", "target", targetURL, "error", err)

	return &Captured{
		StatusCode: http.StatusBadGateway,
		Header:     http.Header{},
		Body:       []byte(err.Error()),
	}
}
