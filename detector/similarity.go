package detector

import (
	"strings"

	"github.com/apex/log"
)

// scorer computes the similarity of a text against a corpus of recent texts.
type scorer interface {
	Score(text string, corpus []string) float64
}

// vectorScorer scores with tf-idf cosine similarity and falls back to word
// overlap for any call whose vector space cannot be built.
type vectorScorer struct {
	vec      *vectorizer
	fallback overlapScorer
}

func (s *vectorScorer) Score(text string, corpus []string) float64 {
	if text == "" || len(corpus) == 0 {
		return 0.0
	}

	sim, err := s.cosineMax(text, corpus)
	if err != nil {
		log.WithError(err).Error("error calculating text similarity")
		return s.fallback.Score(text, corpus)
	}
	log.Debugf("text similarity calculated: %.3f", sim)
	return sim
}

func (s *vectorScorer) cosineMax(text string, corpus []string) (float64, error) {
	docs := make([]string, 0, len(corpus)+1)
	docs = append(docs, text)
	docs = append(docs, corpus...)

	vectors, err := s.vec.fit(docs)
	if err != nil {
		return 0, err
	}

	input := vectors[0]
	max := 0.0
	for _, cv := range vectors[1:] {
		// Vectors are l2-normalized, so the dot product is the cosine.
		if sim := dot(input, cv); sim > max {
			max = sim
		}
	}
	if max > 1.0 {
		max = 1.0
	}
	return max, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// overlapScorer is the heuristic similarity: maximum Jaccard word overlap
// over the corpus.
type overlapScorer struct{}

func (overlapScorer) Score(text string, corpus []string) float64 {
	if text == "" || len(corpus) == 0 {
		return 0.0
	}

	textWords := wordSet(text)
	if len(textWords) == 0 {
		return 0.0
	}

	max := 0.0
	for _, doc := range corpus {
		if doc == "" {
			continue
		}
		docWords := wordSet(doc)
		if len(docWords) == 0 {
			continue
		}

		intersection := 0
		for w := range textWords {
			if docWords[w] {
				intersection++
			}
		}
		union := len(textWords) + len(docWords) - intersection
		if union > 0 {
			if sim := float64(intersection) / float64(union); sim > max {
				max = sim
			}
		}
	}
	return max
}

func wordSet(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		words[w] = true
	}
	return words
}
