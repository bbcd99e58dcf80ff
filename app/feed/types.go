package feed

// Metadata holds feed-level fields extracted from a parsed document
type Metadata struct {
	Title string
}

// Item is one normalized feed entry. Fields mirror what the ingestion
// pipeline persists: the provider GUID, display fields and the publication
// time as epoch seconds (0 when the source carries no usable timestamp).
type Item struct {
	GUID        string
	Title       string
	Content     string
	Link        string
	Author      string
	PublishedAt int64
}
