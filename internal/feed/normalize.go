package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxSnippetRunes = 300

var trackingQueryKeys = map[string]struct{}{
	"fbclid":      {},
	"gclid":       {},
	"mc_cid":      {},
	"mc_eid":      {},
	"ref":         {},
	"ref_src":     {},
	"igshid":      {},
	"cmpid":       {},
	"ocid":        {},
	"ito":         {},
	"at_medium":   {},
	"at_campaign": {},
	"_ga":         {},
	"yclid":       {},
	"msclkid":     {},
}

// CanonicalURL strips tracking parameters, the fragment and trailing slashes.
// The order of the remaining query parameters is kept, so applying it to its
// own output returns the same string.
func CanonicalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("url is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", trimmed, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", trimmed)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.RawPath != "" {
		// An escaped %2F is part of the last segment, not a trailing slash.
		parsed.RawPath = strings.TrimRight(parsed.RawPath, "/")
		unescaped, err := url.PathUnescape(parsed.RawPath)
		if err != nil {
			return "", fmt.Errorf("unescape path %q: %w", parsed.RawPath, err)
		}
		parsed.Path = unescaped
	} else {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}
	parsed.RawQuery = stripTrackingParams(parsed.RawQuery)
	parsed.ForceQuery = false

	return parsed.String(), nil
}

func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			continue
		}
		if _, tracked := trackingQueryKeys[lower]; tracked {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

// SourceDomain is the host of a canonical URL without a leading "www.".
func SourceDomain(canonical string) string {
	parsed, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// Fingerprint hashes the word-order independent shape of a title together
// with its source, so reordered headlines from one outlet collide.
func Fingerprint(title, sourceName string) string {
	tokens := significantTokens(title, 3)
	sort.Strings(tokens)

	sum := sha256.Sum256([]byte(strings.Join(tokens, " ") + strings.ToLower(strings.TrimSpace(sourceName))))
	return hex.EncodeToString(sum[:])
}

// significantTokens lowercases text, drops every rune that is not a letter,
// digit or space, and keeps the words longer than minLen runes.
func significantTokens(text string, minLen int) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) > minLen {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Snippet renders a feed description as short plain text.
func Snippet(html string) string {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" {
		return ""
	}

	text := trimmed
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed)); err == nil {
		doc.Find("script, style").Remove()
		text = doc.Text()
	}

	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxSnippetRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxSnippetRunes]))
}
