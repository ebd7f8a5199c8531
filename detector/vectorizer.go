package detector

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var errEmptyVocabulary = errors.New("empty vocabulary after token filtering")

const tokenPattern = `[\p{L}\p{N}_]{2,}`

// vectorizer builds a term-weighted vector space over a small document set.
// The space is rebuilt for every call so no vocabulary carries over between
// detections.
type vectorizer struct {
	tokens      *regexp.Regexp
	maxFeatures int
}

func newVectorizer(maxFeatures int) (*vectorizer, error) {
	re, err := regexp.Compile(tokenPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling token pattern: %w", err)
	}
	return &vectorizer{tokens: re, maxFeatures: maxFeatures}, nil
}

// tokenize lowercases, folds accents, splits into word tokens of two or more
// characters, drops stop words, and appends bigrams of the surviving tokens.
func (v *vectorizer) tokenize(doc string) []string {
	folded := foldAccents(strings.ToLower(doc))
	words := v.tokens.FindAllString(folded, -1)

	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}

	terms := make([]string, 0, len(kept)*2)
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

// fit builds l2-normalized tf-idf vectors for docs over a shared vocabulary.
// The vocabulary is capped at maxFeatures terms, most frequent first with
// alphabetical tie-breaks. Returns errEmptyVocabulary when no document
// yields a single term.
func (v *vectorizer) fit(docs []string) ([][]float64, error) {
	counts := make([]map[string]int, len(docs))
	totals := map[string]int{}
	df := map[string]int{}

	for i, doc := range docs {
		c := map[string]int{}
		for _, term := range v.tokenize(doc) {
			c[term]++
			totals[term]++
		}
		for term := range c {
			df[term]++
		}
		counts[i] = c
	}

	if len(totals) == 0 {
		return nil, errEmptyVocabulary
	}

	vocab := make([]string, 0, len(totals))
	for term := range totals {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if totals[vocab[i]] != totals[vocab[j]] {
			return totals[vocab[i]] > totals[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if v.maxFeatures > 0 && len(vocab) > v.maxFeatures {
		vocab = vocab[:v.maxFeatures]
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([][]float64, len(docs))
	for i, c := range counts {
		vec := make([]float64, len(vocab))
		sumSquares := 0.0
		for j, term := range vocab {
			w := float64(c[term]) * idf[j]
			vec[j] = w
			sumSquares += w * w
		}
		if sumSquares > 0 {
			l2 := math.Sqrt(sumSquares)
			for j := range vec {
				vec[j] /= l2
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// foldAccents decomposes the string and strips combining marks, so accented
// and plain spellings share tokens.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
