package feed

import (
	"strings"
	"testing"
)

func TestCanonicalURLStripsTrackingFragmentAndTrailingSlash(t *testing.T) {
	t.Parallel()

	got, err := CanonicalURL("https://Example.COM/news/story/?id=7&utm_source=rss&fbclid=abc&b=2#comments")
	if err != nil {
		t.Fatalf("canonical url: %v", err)
	}
	if got != "https://example.com/news/story?id=7&b=2" {
		t.Fatalf("unexpected canonical url: %q", got)
	}
}

func TestCanonicalURLIsFixedPoint(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://example.com/a/b/?utm_medium=x",
		"https://example.com/",
		"http://example.com/path?z=1&a=2&ref=home",
		"https://example.com/caf%C3%A9/?q=hello%20world#top",
		"https://example.com/a//",
		"https://x.example/a%2F",
		"https://x.example/a%2F/",
	}
	for _, input := range inputs {
		once, err := CanonicalURL(input)
		if err != nil {
			t.Fatalf("canonical %q: %v", input, err)
		}
		twice, err := CanonicalURL(once)
		if err != nil {
			t.Fatalf("canonical %q: %v", once, err)
		}
		if once != twice {
			t.Fatalf("normalization is not a fixed point: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestCanonicalURLKeepsEscapedSlash(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://x.example/a%2F":       "https://x.example/a%2F",
		"https://x.example/a%2F/":      "https://x.example/a%2F",
		"https://x.example/a%2Fb//?x=1": "https://x.example/a%2Fb?x=1",
	}
	for input, want := range cases {
		got, err := CanonicalURL(input)
		if err != nil {
			t.Fatalf("canonical %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("canonical %q: got %q want %q", input, got, want)
		}
	}
}

func TestCanonicalURLRejectsRelativeLinks(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "/relative/path", "not a url"} {
		if _, err := CanonicalURL(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestSourceDomainDropsWWW(t *testing.T) {
	t.Parallel()

	if got := SourceDomain("https://www.bbc.co.uk/sport/football/1"); got != "bbc.co.uk" {
		t.Fatalf("unexpected domain: %q", got)
	}
}

func TestFingerprintIgnoresWordOrderAndPunctuation(t *testing.T) {
	t.Parallel()

	left := Fingerprint("Arsenal beat Chelsea in thriller!", "BBC Sport")
	right := Fingerprint("Thriller: Chelsea, Arsenal beat in", "bbc sport")
	if left != right {
		t.Fatalf("expected reordered titles from one source to share a fingerprint")
	}

	other := Fingerprint("Arsenal beat Chelsea in thriller!", "Sky Sports")
	if left == other {
		t.Fatalf("expected different sources to produce different fingerprints")
	}
	if len(left) != 64 {
		t.Fatalf("expected hex sha256 fingerprint, got %d chars", len(left))
	}
}

func TestSignificantTokensKeepsWordsLongerThanMin(t *testing.T) {
	t.Parallel()

	got := significantTokens("The BIG win, 3-1 for Spurs' side", 3)
	want := []string{"spurs", "side"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected tokens: got %v want %v", got, want)
	}
}

func TestSnippetStripsHTMLAndTruncates(t *testing.T) {
	t.Parallel()

	got := Snippet(`<p>Late <b>drama</b> at the Emirates.</p><script>track()</script>`)
	if got != "Late drama at the Emirates." {
		t.Fatalf("unexpected snippet: %q", got)
	}

	long := Snippet(strings.Repeat("word ", 200))
	if n := len([]rune(long)); n > maxSnippetRunes {
		t.Fatalf("expected snippet to be truncated to %d runes, got %d", maxSnippetRunes, n)
	}
	if Snippet("   ") != "" {
		t.Fatalf("expected blank snippet for blank input")
	}
}
