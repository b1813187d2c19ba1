package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"horse.fit/newsignal/internal/news"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Sample</title>
<link>https://example.com</link>
<description>Sample feed</description>
<item>
  <title>Arsenal beat Chelsea 3-1 in thriller</title>
  <link>https://example.com/football/arsenal-chelsea/?utm_source=rss</link>
  <description>&lt;p&gt;Late goals at the Emirates.&lt;/p&gt;</description>
  <pubDate>Mon, 19 Oct 2026 10:00:00 GMT</pubDate>
</item>
<item>
  <title>Undated rumour</title>
  <link>https://example.com/football/rumour</link>
</item>
</channel>
</rss>`

func TestHTTPFetcherParsesFeed(t *testing.T) {
	t.Parallel()

	userAgents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case userAgents <- r.Header.Get("User-Agent"):
		default:
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(HTTPFetcherOptions{Client: srv.Client(), UserAgent: "newsignal-test", Timeout: time.Second})
	entries, err := fetcher.Fetch(context.Background(), news.Source{ID: 1, URL: srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Published == nil {
		t.Fatalf("expected first entry to carry a parsed publish date")
	}
	if entries[1].Published != nil {
		t.Fatalf("expected undated entry to have nil publish date")
	}
	if gotUA := <-userAgents; gotUA != "newsignal-test" {
		t.Fatalf("expected configured user agent, got %q", gotUA)
	}
}

func TestHTTPFetcherReportsHTTPErrorsAsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(HTTPFetcherOptions{Client: srv.Client(), Timeout: time.Second})
	_, err := fetcher.Fetch(context.Background(), news.Source{ID: 9, URL: srv.URL})
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.SourceID != 9 {
		t.Fatalf("unexpected source id on error: %d", fetchErr.SourceID)
	}
}

func TestHTTPFetcherTimesOutSlowSources(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	fetcher := NewHTTPFetcher(HTTPFetcherOptions{Client: srv.Client(), Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := fetcher.Fetch(context.Background(), news.Source{ID: 3, URL: srv.URL})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected fetch to give up quickly, took %s", elapsed)
	}
}
