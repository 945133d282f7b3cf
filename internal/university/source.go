package university

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Source fetches the full dataset.
type Source interface {
	FetchUniversities(ctx context.Context) ([]University, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]University, error)

func (f SourceFunc) FetchUniversities(ctx context.Context) ([]University, error) { return f(ctx) }

const maxDatasetSize = 64 * 1024 * 1024

// HTTPSource downloads the dataset with a single GET.
type HTTPSource struct {
	url string
	c   *colly.Collector
}

// NewHTTPSource returns a source for datasetURL. A zero timeout keeps the
// collector default.
func NewHTTPSource(datasetURL string, timeout time.Duration) *HTTPSource {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxDatasetSize),
		colly.UserAgent("campus-mcp/0.1"),
	)
	// Non-2xx responses reach OnResponse so the status can be reported.
	c.ParseHTTPErrorResponse = true
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	return &HTTPSource{url: datasetURL, c: c}
}

func (s *HTTPSource) FetchUniversities(ctx context.Context) ([]University, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.c.Clone()
	c.Context = ctx
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})

	var (
		status int
		body   []byte
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})

	if err := c.Visit(s.url); err != nil {
		return nil, fmt.Errorf("university: fetch dataset: %w", err)
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("university: dataset status %d", status)
	}
	return DecodeDataset(body)
}
