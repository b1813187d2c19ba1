package db

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm/logger"
)

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	if got := resolveGormLogLevel("debug", "production"); got != logger.Info {
		t.Fatalf("expected debug to map to gorm info, got %v", got)
	}
	if got := resolveGormLogLevel("info", "production"); got != logger.Warn {
		t.Fatalf("expected info to map to gorm warn, got %v", got)
	}
	if got := resolveGormLogLevel("silent", "local"); got != logger.Silent {
		t.Fatalf("expected silent to map to gorm silent, got %v", got)
	}
	if got := resolveGormLogLevel("bogus", "production"); got != logger.Error {
		t.Fatalf("expected unknown level outside local to map to gorm error, got %v", got)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escaped pattern: %q", got)
	}
}

func TestNilPoolIsSafe(t *testing.T) {
	t.Parallel()

	var p *Pool
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil pool close to be a no-op, got %v", err)
	}
	if err := p.QueryRow(context.Background(), "SELECT 1").Scan(); !IsNoRows(err) {
		t.Fatalf("expected ErrNoRows from nil pool row, got %v", err)
	}
}

func TestTitleKeywordDeleteBuildsEscapedILikes(t *testing.T) {
	t.Parallel()

	q, args, err := titleKeywordDelete([]string{" horoscope ", "", "50%_off"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(q, "DELETE FROM news.news_items WHERE") {
		t.Fatalf("unexpected statement: %s", q)
	}
	if strings.Count(q, "title ILIKE") != 2 || !strings.Contains(q, "$1") || !strings.Contains(q, "$2") || !strings.Contains(q, " OR ") {
		t.Fatalf("expected two dollar-bound ILIKE clauses, got %s", q)
	}
	if len(args) != 2 || args[0] != "%horoscope%" || args[1] != `%50\%\_off%` {
		t.Fatalf("unexpected args: %#v", args)
	}

	q, args, err = titleKeywordDelete([]string{"  "})
	if err != nil || q != "" || args != nil {
		t.Fatalf("expected empty statement for blank keywords, got %q %v %v", q, args, err)
	}
}

func TestSignalsQueryAddsOptionalFilters(t *testing.T) {
	t.Parallel()

	q, args, err := signalsQuery(SignalFilter{MinDIS: 60, Limit: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"dis_score IS NOT NULL", "dis_score >= $1", "ORDER BY dis_score DESC, published_at DESC, id ASC", "LIMIT 25"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query missing %q: %s", want, q)
		}
	}
	if len(args) != 1 || args[0] != 60 {
		t.Fatalf("unexpected args: %#v", args)
	}

	q, args, err = signalsQuery(SignalFilter{MinDIS: 70, Limit: 5, Tier: 1, Category: " Markets "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q, "tier = $2") || !strings.Contains(q, "category = $3") {
		t.Fatalf("expected tier and category predicates: %s", q)
	}
	if len(args) != 3 || args[1] != 1 || args[2] != "markets" {
		t.Fatalf("unexpected args: %#v", args)
	}
}
