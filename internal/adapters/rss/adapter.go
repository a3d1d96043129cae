// Package rss implements a generic source adapter for RSS and Atom feeds.
// Candidate discovery parses the source feed; item parsing fetches the
// linked article page and extracts its text.
package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/fetcher"
	"github.com/rasadlabs/newscrawler/internal/news"
)

// Adapter crawls sources that expose an RSS or Atom feed.
type Adapter struct {
	client *fetcher.Client
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]feedEntry
}

type feedEntry struct {
	title     string
	summary   string
	published string
	authors   []string
}

// New builds an Adapter on top of the retrying fetch client.
func New(client *fetcher.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:  client,
		logger:  logger,
		entries: make(map[string]feedEntry),
	}
}

// ListCandidates fetches and parses the source feed, returning item links.
// Feed metadata is cached per link so ParseItem can fold it into the item.
func (a *Adapter) ListCandidates(ctx context.Context, source news.SourceConfig, limit int) ([]string, error) {
	feedURL := a.feedURL(source)
	resp, err := a.client.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	var links []string
	a.mu.Lock()
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		if limit > 0 && len(links) >= limit {
			break
		}
		links = append(links, item.Link)
		entry := feedEntry{
			title:     item.Title,
			summary:   item.Description,
			published: item.Published,
		}
		for _, author := range item.Authors {
			if author != nil && author.Name != "" {
				entry.authors = append(entry.authors, author.Name)
			}
		}
		a.entries[item.Link] = entry
	}
	a.mu.Unlock()

	a.logger.Debug("feed candidates discovered",
		zap.String("source", source.Name),
		zap.String("feed_url", feedURL),
		zap.Int("candidates", len(links)),
	)
	return links, nil
}

// ParseItem fetches the article page and extracts its text. A page that is
// definitively gone (HTTP 404) yields (nil, nil).
func (a *Adapter) ParseItem(ctx context.Context, url string) (*news.ItemData, error) {
	resp, err := a.client.Get(ctx, url)
	if errors.Is(err, news.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	title, body := extractArticle(resp.Body)

	a.mu.RLock()
	entry, cached := a.entries[url]
	a.mu.RUnlock()

	if title == "" && cached {
		title = entry.title
	}
	if body == "" && cached {
		body = entry.summary
	}
	if title == "" && body == "" {
		// Nothing extractable; treat as unparseable rather than an error.
		return nil, nil
	}

	meta := map[string]any{}
	if cached {
		if entry.published != "" {
			meta["published"] = entry.published
		}
		if len(entry.authors) > 0 {
			meta["authors"] = entry.authors
		}
	}

	return &news.ItemData{
		Title: title,
		Body:  body,
		Meta:  meta,
		Raw:   resp.Body,
	}, nil
}

func (a *Adapter) feedURL(source news.SourceConfig) string {
	if source.Settings != nil {
		if u, ok := source.Settings["feed_url"].(string); ok && u != "" {
			return u
		}
		if p, ok := source.Settings["feed_path"].(string); ok && p != "" {
			return strings.TrimRight(source.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
		}
	}
	return source.BaseURL
}

// extractArticle pulls the page title and paragraph text out of an HTML
// document. Non-HTML or unparseable payloads yield empty strings.
func extractArticle(payload []byte) (title, body string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		title = og
	}

	var paragraphs []string
	doc.Find("article p, main p, p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	// The selector above can match the same node twice when it sits inside
	// article or main; dedupe while preserving order.
	seen := make(map[string]struct{}, len(paragraphs))
	var unique []string
	for _, p := range paragraphs {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return title, strings.Join(unique, "\n\n")
}
