package feed

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses RSS or Atom bytes into feed metadata and normalized items.
// Items keep the document order (newest first for most feeds).
func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title: parsed.Title,
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:    cmp.Or(item.GUID, item.Link),
		Title:   item.Title,
		Content: cmp.Or(item.Content, item.Description),
		Link:    item.Link,
		Author:  primaryAuthor(item),
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = item.PublishedParsed.Unix()
	} else if item.UpdatedParsed != nil {
		normalized.PublishedAt = item.UpdatedParsed.Unix()
	}

	return normalized
}

// primaryAuthor returns the first author, preferring email over name
func primaryAuthor(item *gofeed.Item) string {
	if len(item.Authors) == 0 {
		return ""
	}
	author := item.Authors[0]
	return cmp.Or(author.Email, author.Name)
}
