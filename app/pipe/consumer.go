package pipe

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/yichya/rss-pipe/app/database"
	"github.com/yichya/rss-pipe/app/feed"
	"github.com/yichya/rss-pipe/app/proxy"
)

// run drains the queue sequentially until the pipe is stopped. A failing
// payload is logged and skipped; it never halts ingestion.
func (p *Pipe) run() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case payload := <-p.queue:
			p.process(payload)
		}
	}
}

// process parses one captured payload and persists its contents, or routes
// the failure through the recovery and error paths
func (p *Pipe) process(payload Payload) {
	metadata, items, err := p.parser.Run(payload.Body)
	if err != nil {
		p.handleParseError(payload, err)
		return
	}

	notifications := p.ingest(payload.SourceURL, metadata, items)
	for _, n := range notifications {
		p.notifier.Send(n.feedTitle, n.itemTitle, n.content, "", n.link, "")
	}
}

// ingest upserts the feed and its items inside a single transaction and
// collects the notification tuples to fan out afterwards. A brand-new feed
// yields exactly one subscription notification and suppresses per-item ones.
func (p *Pipe) ingest(sourceURL string, metadata *feed.Metadata, items []feed.Item) []notification {
	var notifications []notification

	err := p.db.InTransaction(func(tx *sql.Tx) error {
		feeds := database.NewFeedRepository(tx)
		itemRepo := database.NewItemRepository(tx)

		feedID, locationID, feedCreated, err := feeds.UpsertFeed(sourceURL, metadata.Title)
		if err != nil {
			return err
		}
		if feedCreated {
			notifications = append(notifications, notification{
				feedTitle: "New Feed Subscription",
				content:   metadata.Title,
			})
			slog.Info("Created new feed", "title", metadata.Title, "feed_id", feedID,
				"url", sourceURL, "location_id", locationID)
		}

		// Entries arrive newest first; ingest oldest first so notifications
		// fan out chronologically
		for i := len(items) - 1; i >= 0; i-- {
			item := items[i]
			itemID, itemCreated, err := itemRepo.CreateItem(feedID, item.GUID, item.Title,
				item.Content, item.Link, item.Author, item.PublishedAt)
			if err != nil {
				return err
			}
			if itemCreated {
				slog.Info("Created new item", "guid", item.GUID, "item_id", itemID)
				if !feedCreated {
					notifications = append(notifications, notification{
						feedTitle: metadata.Title,
						itemTitle: item.Title,
						content:   item.Content,
						link:      item.Link,
					})
				}
			}
		}

		return nil
	})

	if err != nil {
		p.collector.RecordPipeError()
		slog.Error("Failed to persist captured feed", "source", sourceURL, "error", err)
		return nil
	}

	return notifications
}

// handleParseError classifies a payload that did not parse as a feed. A
// "not modified" response for a URL with no known feed is a cache-coherency
// gap: the origin believes the feed exists but the store has no record of
// it. Recovery is a single direct refetch bypassing the client's conditional
// headers; recovered payloads never trigger a second attempt.
func (p *Pipe) handleParseError(payload Payload, parseErr error) {
	if payload.StatusCode == http.StatusNotModified && !payload.Recovery {
		location, err := database.NewFeedRepository(p.db).GetLocationByURL(payload.SourceURL)
		if err != nil {
			p.collector.RecordPipeError()
			slog.Error("Failed to look up feed for stale-cache recovery", "source", payload.SourceURL, "error", err)
			return
		}
		if location == nil {
			p.recoverStaleCache(payload.SourceURL)
			return
		}
	}

	p.collector.RecordPipeError()
	slog.Error("Failed to parse captured payload", "source", payload.SourceURL,
		"status_code", payload.StatusCode, "error", parseErr)
}

// recoverStaleCache refetches the URL without conditional cache headers and
// feeds the result back through the capture tee exactly once
func (p *Pipe) recoverStaleCache(sourceURL string) {
	slog.Info("Received 304 without existing feed, fetching again without cache", "source", sourceURL)

	ctx, cancel := context.WithTimeout(p.ctx, proxy.FetchTimeout)
	defer cancel()

	resp, err := p.gateway.Get(ctx, sourceURL)
	if err != nil {
		p.collector.RecordPipeError()
		slog.Error("Stale-cache recovery fetch failed", "source", sourceURL, "error", err)
		return
	}

	p.capture(sourceURL, resp, true)
}
