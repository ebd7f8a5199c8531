package detector

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/apex/log"
)

var spamIndicators = []string{"click here", "free", "win now", "limited time", "act now"}

// validateContent runs the basic quality checks on a submission and returns
// whether the content passes along with its suspicion score.
func (d *Detector) validateContent(text, imageRef string) (bool, float64) {
	suspicion := 0.0

	if text == "" && imageRef == "" {
		log.Warn("report has no text or image content")
		return false, 0.9
	}

	if text != "" {
		if utf8.RuneCountInString(strings.TrimSpace(text)) < d.cfg.MinTextLength {
			suspicion += 0.3
		}

		// Gibberish check: fewer than 30% unique characters.
		if float64(uniqueRunes(text)) < float64(utf8.RuneCountInString(text))*0.3 {
			suspicion += 0.4
		}

		lower := strings.ToLower(text)

		for _, indicator := range spamIndicators {
			if strings.Contains(lower, indicator) {
				suspicion += 0.5
				break
			}
		}

		if isAllUpper(text) && utf8.RuneCountInString(text) > 20 {
			suspicion += 0.2
		}
	}

	if imageRef != "" {
		if !d.images.Exists(imageRef) {
			suspicion += 0.3
		} else if size, err := d.images.Size(imageRef); err != nil {
			log.Warnf("error validating image %s: %v", imageRef, err)
			suspicion += 0.2
		} else if size < d.cfg.MinImageBytes {
			suspicion += 0.4
		}
	}

	if suspicion > 1.0 {
		suspicion = 1.0
	}
	return suspicion < 0.7, suspicion
}

func uniqueRunes(s string) int {
	seen := map[rune]bool{}
	for _, r := range s {
		seen[r] = true
	}
	return len(seen)
}

// isAllUpper reports whether the string has at least one cased rune and none
// of them is lowercase.
func isAllUpper(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}
