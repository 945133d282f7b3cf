package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/leonardcser/campus-mcp/internal/cache"
	"github.com/leonardcser/campus-mcp/internal/logger"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 1 * 1024 * 1024 // 1MB
)

// PageSummary is the rendered preview of a university web page.
type PageSummary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
	Links       []string `json:"links"`
}

// Fetcher downloads homepages and keeps their summaries in a KV cache.
type Fetcher struct {
	c     *colly.Collector
	cache cache.KV
	ttl   time.Duration
}

func NewFetcher(cacheStore cache.KV, ttl time.Duration) *Fetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
		colly.UserAgent("Mozilla/5.0 (compatible; campus-mcp/0.1)"),
	)
	c.SetRequestTimeout(RequestTimeout)
	return &Fetcher{c: c, cache: cacheStore, ttl: ttl}
}

func (f *Fetcher) cacheKey(rawURL string) string { return "homepage|" + rawURL }

// NormalizeURL adds https:// to scheme-less addresses such as "www.mit.edu".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, nil
	}
	if strings.Contains(raw, "://") {
		return "", fmt.Errorf("unsupported url scheme: %s", raw)
	}
	return "https://" + raw, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*PageSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if v, err := f.cache.Get(f.cacheKey(target)); err == nil {
		var ps PageSummary
		if json.Unmarshal(v, &ps) == nil {
			return &ps, nil
		}
	}

	c := f.c.Clone()
	c.Context = ctx
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		body        []byte
		finalURL    string
		contentType string
	)
	c.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
		body = append([]byte(nil), r.Body...)
		contentType = r.Headers.Get("Content-Type")
	})

	if err := c.Visit(target); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	if len(body) > MaxResponseSize {
		body = body[:MaxResponseSize]
	}

	ps, err := Summarize(finalURL, contentType, body)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(ps); err == nil {
		if err := f.cache.Put(f.cacheKey(target), b, f.ttl); err != nil {
			logger.Warnf("Failed to cache homepage %s: %v", target, err)
		}
	}
	return ps, nil
}
