package search

import (
	"strings"

	"github.com/poiesic/catalogit/core"
)

// Words too common in product queries to signal a verbatim match
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"for": true, "with": true, "in": true, "on": true, "to": true, "by": true,
	"from": true, "is": true, "it": true, "this": true, "that": true,
	"best": true, "new": true, "cheap": true,
}

// queryTerms splits text into lowercase words, trims punctuation and removes stop words
func queryTerms(text string) []string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			terms = append(terms, cleaned)
		}
	}

	return terms
}

// matchesAllTerms reports whether every term appears as a word of the
// record's title, brand or categories.
func matchesAllTerms(record *core.CatalogRecord, terms []string) bool {
	if len(terms) == 0 {
		return false
	}

	words := make(map[string]bool)
	add := func(s string) {
		for _, w := range queryTerms(s) {
			words[w] = true
		}
	}
	add(record.Title)
	add(record.Brand)
	for _, c := range record.Categories {
		add(c)
	}

	for _, term := range terms {
		if !words[term] {
			return false
		}
	}
	return true
}
