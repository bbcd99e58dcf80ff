package database

// Feed represents a syndication source discovered from proxied traffic
type Feed struct {
	ID          int64
	Title       string
	LastUpdated int64 // epoch seconds of the last successful refresh
}

// FeedURL represents one URL a feed has been observed at. A feed keeps every
// URL it was ever fetched from; the most recently inserted one is canonical.
type FeedURL struct {
	ID     int64
	FeedID int64
	URL    string
}

// FeedListing pairs a feed with its canonical URL
type FeedListing struct {
	Feed Feed
	URL  FeedURL
}

// Item represents one deduplicated feed entry
type Item struct {
	ID            int64
	FeedID        int64
	Title         string
	Author        string
	Content       string
	URL           string
	IsSaved       int
	IsRead        int
	CreatedOnTime int64 // epoch seconds
}
