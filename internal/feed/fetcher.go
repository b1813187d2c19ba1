package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"horse.fit/newsignal/internal/news"
)

const DefaultTimeout = 5 * time.Second

// Entry is one parsed feed entry before normalization.
type Entry struct {
	Title       string
	Link        string
	Description string
	Content     string
	Published   *time.Time
}

// Fetcher retrieves and parses one source's feed.
type Fetcher interface {
	Fetch(ctx context.Context, src news.Source) ([]Entry, error)
}

// FetchError is a whole-source failure: network, timeout, HTTP status or parse.
type FetchError struct {
	SourceID  int64
	SourceURL string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source id=%d url=%q: %v", e.SourceID, e.SourceURL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was the per-source deadline.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// HTTPFetcher parses RSS, Atom and JSON feeds with gofeed.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

type HTTPFetcherOptions struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

func NewHTTPFetcher(opts HTTPFetcherOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		timeout:   timeout,
	}
}

// Fetch applies the per-source timeout itself so a slow origin cannot hold the batch.
func (f *HTTPFetcher) Fetch(ctx context.Context, src news.Source) ([]Entry, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = f.client
	if f.userAgent != "" {
		parser.UserAgent = f.userAgent
	}

	parsed, err := parser.ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		return nil, &FetchError{SourceID: src.ID, SourceURL: src.URL, Err: err}
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		entries = append(entries, Entry{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Published:   published,
		})
	}
	return entries, nil
}
