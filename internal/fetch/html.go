package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageRules are the CSS-selector extraction rules for one scraped listing
// page: Item selects each repeated node, the rest are evaluated within it.
type PageRules struct {
	Item    string
	Title   string
	Summary string
	Date    string
	Link    string
}

// PageRecord is the raw shape of one scraped HTML listing entry.
type PageRecord struct {
	Title    string
	Summary  string
	DateText string
	Link     string
}

// Page downloads an HTML page and applies rules to extract raw records.
// Relative links are resolved against the page URL.
func Page(ctx context.Context, c *Client, pageURL string, rules PageRules) ([]PageRecord, error) {
	body, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	var records []PageRecord
	doc.Find(rules.Item).Each(func(_ int, sel *goquery.Selection) {
		rec := PageRecord{
			Title:    strings.TrimSpace(sel.Find(rules.Title).First().Text()),
			Summary:  strings.TrimSpace(sel.Find(rules.Summary).First().Text()),
			DateText: strings.TrimSpace(sel.Find(rules.Date).First().Text()),
		}
		if href, ok := sel.Find(rules.Link).First().Attr("href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
				rec.Link = base.ResolveReference(ref).String()
			}
		}
		records = append(records, rec)
	})
	return records, nil
}
