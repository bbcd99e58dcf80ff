package database

import (
	"database/sql"
	"fmt"
)

// FeedRepository handles database operations for feeds and their URLs
type FeedRepository struct {
	q Querier
}

// NewFeedRepository creates a new feed repository over a database or transaction
func NewFeedRepository(q Querier) *FeedRepository {
	return &FeedRepository{q: q}
}

// GetLocationByURL retrieves the feed_url row matching the given URL.
// Returns nil when no feed has ever been observed at that URL.
func (r *FeedRepository) GetLocationByURL(url string) (*FeedURL, error) {
	var loc FeedURL
	err := r.q.QueryRow(`
		SELECT id, feed_id, url FROM feed_url WHERE url = ? LIMIT 1
	`, url).Scan(&loc.ID, &loc.FeedID, &loc.URL)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed location by URL: %w", err)
	}

	return &loc, nil
}

// UpsertFeed refreshes the feed known at the given URL, creating it when
// unknown. An existing feed keeps its originally seen title; only its
// last_updated timestamp moves forward. Returns the feed id, the feed_url id
// and whether the feed was created.
func (r *FeedRepository) UpsertFeed(url, title string) (int64, int64, bool, error) {
	existing, err := r.GetLocationByURL(url)
	if err != nil {
		return 0, 0, false, err
	}

	if existing != nil {
		_, err := r.q.Exec(`
			UPDATE feed SET last_updated = current_timestamp WHERE id = ?
		`, existing.FeedID)
		if err != nil {
			return 0, 0, false, fmt.Errorf("failed to refresh feed: %w", err)
		}
		return existing.FeedID, existing.ID, false, nil
	}

	var feedID int64
	err = r.q.QueryRow(`
		INSERT INTO feed (title) VALUES (?) RETURNING id
	`, title).Scan(&feedID)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to insert feed: %w", err)
	}

	var locationID int64
	err = r.q.QueryRow(`
		INSERT INTO feed_url (feed_id, url) VALUES (?, ?) RETURNING id
	`, feedID, url).Scan(&locationID)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to insert feed URL: %w", err)
	}

	return feedID, locationID, true, nil
}

// GetAllFeeds returns every feed paired with its canonical URL, which is the
// most recently inserted feed_url row for that feed.
func (r *FeedRepository) GetAllFeeds() ([]FeedListing, error) {
	rows, err := r.q.Query(`
		WITH canonical AS (
			SELECT feed.id, feed.title, unixepoch(feed.last_updated) AS last_updated,
			       max(feed_url.id) AS feed_url_id
			FROM feed JOIN feed_url ON feed.id = feed_url.feed_id
			GROUP BY feed.id
		)
		SELECT canonical.id, canonical.title, canonical.last_updated,
		       feed_url.id, feed_url.url
		FROM canonical JOIN feed_url ON canonical.feed_url_id = feed_url.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var listings []FeedListing
	for rows.Next() {
		var l FeedListing
		err := rows.Scan(&l.Feed.ID, &l.Feed.Title, &l.Feed.LastUpdated, &l.URL.ID, &l.URL.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		l.URL.FeedID = l.Feed.ID
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return listings, nil
}

// GetLastRefreshedTime returns the newest last_updated across all feeds as
// epoch seconds, or 0 when no feed exists.
func (r *FeedRepository) GetLastRefreshedTime() (int64, error) {
	var last sql.NullInt64
	err := r.q.QueryRow(`
		SELECT unixepoch(max(last_updated)) FROM feed
	`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to get last refreshed time: %w", err)
	}
	return last.Int64, nil
}
