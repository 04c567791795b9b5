package vsm

import (
	_ "embed"
	"regexp"
	"strings"
)

//go:embed stopwords.txt
var stopwordList string

var (
	tokenRe   = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)
	stopwords = loadStopwords(stopwordList)
)

func loadStopwords(list string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(list) {
		m[w] = true
	}
	return m
}

// analyze returns the unigram and bigram terms of text. Stop words are
// removed before bigrams are formed.
func analyze(text string) []string {
	var words []string
	for _, w := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if !stopwords[w] {
			words = append(words, w)
		}
	}
	terms := make([]string, 0, 2*len(words))
	terms = append(terms, words...)
	for i := 1; i < len(words); i++ {
		terms = append(terms, words[i-1]+" "+words[i])
	}
	return terms
}
