// internal/feeds/rss.go

// Package feeds fetches the external content the bot republishes: RSS
// digests for hot deals and news, and the Splatoon 3 rotation schedule.
package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed"
)

const (
	userAgent           = "Mozilla/5.0 (compatible; NIRA/1.0; +https://github.com/Jinjeok/NIRA)"
	defaultFetchTimeout = 15 * time.Second
	defaultItemLimit    = 5
	titleLimit          = 100
	snippetLimit        = 230
)

// Item is one entry of a digest.
type Item struct {
	Title     string
	Link      string
	Author    string
	Published time.Time
	Snippet   string
}

// Digest is a rendered-ready summary of a feed.
type Digest struct {
	Title       string
	URL         string
	Description string
	Footer      string
	Thumbnail   string
	Color       int
	Items       []Item
	// Fallback marks a digest built because the feed could not be read.
	Fallback bool
}

// RSSSource reads one RSS feed into a Digest.
type RSSSource struct {
	Name     string
	URL      string
	Title    string
	HomeURL  string
	Footer   string
	Color    int
	Limit    int
	Fallback string

	parser  *gofeed.Parser
	timeout time.Duration
}

// NewRSSSource builds a source with the bot's user agent.
func NewRSSSource(name, feedURL string) *RSSSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &RSSSource{
		Name:    name,
		URL:     feedURL,
		Limit:   defaultItemLimit,
		parser:  parser,
		timeout: defaultFetchTimeout,
	}
}

// Fetch downloads and parses the feed.
func (s *RSSSource) Fetch(ctx context.Context) (*Digest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Info("Fetching feed", "source", s.Name, "url", s.URL)
	feed, err := s.parser.ParseURLWithContext(s.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.Name, err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed %s has no items", s.Name)
	}

	digest := &Digest{
		Title:  s.Title,
		URL:    s.HomeURL,
		Footer: s.Footer,
		Color:  s.Color,
	}
	if digest.Title == "" {
		digest.Title = feed.Title
	}
	if digest.URL == "" {
		digest.URL = feed.Link
	}
	if digest.Footer == "" {
		digest.Footer = feed.Copyright
	}
	if feed.Image != nil {
		digest.Thumbnail = feed.Image.URL
	}

	limit := s.Limit
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}
	for _, it := range feed.Items[:limit] {
		digest.Items = append(digest.Items, toItem(it, digest.URL))
	}

	return digest, nil
}

// Digest is Fetch that never fails: errors are logged and turned into a
// fallback digest pointing at the site.
func (s *RSSSource) Digest(ctx context.Context) *Digest {
	digest, err := s.Fetch(ctx)
	if err != nil {
		log.Error("Feed fetch failed, using fallback", "source", s.Name, "err", err)
		return s.fallback()
	}
	return digest
}

func (s *RSSSource) fallback() *Digest {
	description := s.Fallback
	if description == "" {
		description = "현재 자동 수집에 문제가 있습니다. 링크를 통해 최신 소식을 확인해주세요."
	}
	title := s.Title
	if title == "" {
		title = s.Name
	}
	return &Digest{
		Title:       title,
		URL:         s.HomeURL,
		Description: description,
		Color:       s.Color,
		Fallback:    true,
	}
}

func toItem(it *gofeed.Item, defaultLink string) Item {
	item := Item{
		Title: Truncate(Collapse(it.Title), titleLimit),
		Link:  it.Link,
	}
	if item.Title == "" {
		item.Title = "제목 없음"
	}
	if item.Link == "" {
		item.Link = defaultLink
	}

	switch {
	case it.Author != nil && it.Author.Name != "":
		item.Author = it.Author.Name
	case it.DublinCoreExt != nil && len(it.DublinCoreExt.Creator) > 0:
		item.Author = it.DublinCoreExt.Creator[0]
	}

	if it.PublishedParsed != nil {
		item.Published = *it.PublishedParsed
	}

	body := it.Description
	if body == "" {
		body = it.Content
	}
	item.Snippet = Truncate(StripHTML(body), snippetLimit)

	return item
}
