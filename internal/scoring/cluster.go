package scoring

import (
	"strings"
	"unicode"

	"horse.fit/newsignal/internal/news"
)

const (
	clusterTokenMinLen = 5
	clusterMinOverlap  = 3
)

type tokenSet map[string]struct{}

// Tokens is the set of lowercase words of five or more characters in title.
func Tokens(title string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(tokenSet, len(words))
	for _, word := range words {
		if len([]rune(word)) < clusterTokenMinLen {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

func overlap(a, b tokenSet) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for token := range a {
		if _, ok := b[token]; ok {
			n++
		}
	}
	return n
}

// Cluster is a loose story group. Its tokens are the founder's and never change.
type Cluster struct {
	tokens  tokenSet
	Members []news.StoredItem
}

func (c *Cluster) Founder() news.StoredItem {
	return c.Members[0]
}

// SourceCount is the number of distinct source names among members.
func (c *Cluster) SourceCount() int {
	seen := make(map[string]struct{}, len(c.Members))
	for _, member := range c.Members {
		seen[member.SourceName] = struct{}{}
	}
	return len(seen)
}

// BuildClusters assigns each item, in the given order, to the first cluster
// whose founder shares at least three tokens with it. Results depend on order.
func BuildClusters(items []news.StoredItem) []*Cluster {
	clusters := make([]*Cluster, 0, len(items))
	for _, item := range items {
		tokens := Tokens(item.Title)

		var home *Cluster
		for _, c := range clusters {
			if overlap(tokens, c.tokens) >= clusterMinOverlap {
				home = c
				break
			}
		}
		if home == nil {
			clusters = append(clusters, &Cluster{tokens: tokens, Members: []news.StoredItem{item}})
			continue
		}
		home.Members = append(home.Members, item)
	}
	return clusters
}
