package audit

import (
	"github.com/obsidianstack/licenseaudit/internal/licenseexpr"
)

// Classification is the outcome for one license text.
type Classification struct {
	Valid bool
	// Key is the canonical expression when Valid, InvalidKey otherwise.
	Key string
}

// Classify parses text as an SPDX license expression.
func Classify(text string) Classification {
	e, err := licenseexpr.Parse(text)
	if err != nil {
		return Classification{Key: InvalidKey}
	}
	return Classification{Valid: true, Key: e.String()}
}

// classifier memoizes Classify; a platform repeats the same few hundred
// license strings across tens of thousands of packages.
type classifier struct {
	seen map[string]Classification
}

func newClassifier() *classifier {
	return &classifier{seen: make(map[string]Classification)}
}

func (c *classifier) classify(text string) Classification {
	if cl, ok := c.seen[text]; ok {
		return cl
	}
	cl := Classify(text)
	c.seen[text] = cl
	return cl
}

// Summarize classifies every candidate once and returns the platform's
// validity counts and frequency table.
func Summarize(platform string, candidates map[string]Candidate) (PlatformSummary, FrequencyTable) {
	sum := PlatformSummary{Platform: platform}
	counts := make(FrequencyTable)
	cls := newClassifier()

	for _, cand := range candidates {
		cl := cls.classify(cand.License)
		if cl.Valid {
			sum.Valid++
		} else {
			sum.Invalid++
		}
		counts[cl.Key]++
	}
	return sum, counts
}
