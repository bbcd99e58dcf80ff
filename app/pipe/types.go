package pipe

import (
	"net/http"
)

// QueueCapacity bounds the number of captured payloads waiting for the
// consumer
const QueueCapacity = 1024

// Payload is one captured response traveling from the proxy path to the
// ingestion consumer. It is owned by the producer until enqueued and by the
// consumer afterwards.
type Payload struct {
	SourceURL  string
	StatusCode int
	Body       []byte

	// Recovery marks payloads produced by the stale-cache refetch so the
	// recovery path runs at most once per occurrence
	Recovery bool
}

// Captured is the client-facing copy of an origin response. The body is a
// fresh copy; the bytes handed to the ingestion queue are owned there.
type Captured struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Notifier receives one notification per newly discovered item or feed
type Notifier interface {
	Send(feedTitle, itemTitle, content, group, link, image string)
}

// notification is the tuple collected during ingestion and fanned out after
// the transaction commits
type notification struct {
	feedTitle string
	itemTitle string
	content   string
	link      string
}
