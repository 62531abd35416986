package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedRecord is the raw shape of one RSS/Atom entry before normalization.
type FeedRecord struct {
	Title       string
	Description string
	Content     string
	Link        string
	GUID        string
	Published   *time.Time
	Updated     *time.Time
	Categories  []string
}

// Feed downloads and parses an RSS/Atom feed into raw records.
func Feed(ctx context.Context, c *Client, url string) ([]FeedRecord, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	records := make([]FeedRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, FeedRecord{
			Title:       item.Title,
			Description: item.Description,
			Content:     item.Content,
			Link:        item.Link,
			GUID:        item.GUID,
			Published:   item.PublishedParsed,
			Updated:     item.UpdatedParsed,
			Categories:  item.Categories,
		})
	}
	return records, nil
}
