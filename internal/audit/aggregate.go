package audit

import "sort"

// Totals is the merged outcome of a run.
type Totals struct {
	// Platforms holds one summary per platform in completion order.
	Platforms []PlatformSummary
	// Counts is the global frequency table.
	Counts FrequencyTable
	// Unavailable lists platforms whose snapshot could not be loaded.
	Unavailable []string
}

// Sorted returns Counts ordered by count, descending. Ties are ordered by
// license key so repeated runs render identically.
func (t *Totals) Sorted() []LicenseCount {
	return SortCounts(t.Counts)
}

// Available reports whether platform's snapshot was loaded.
func (t *Totals) Available(platform string) bool {
	for _, p := range t.Unavailable {
		if p == platform {
			return false
		}
	}
	return true
}

// Aggregator merges platform results. It is not safe for concurrent use;
// one goroutine owns it for the whole run.
type Aggregator struct {
	totals Totals
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{totals: Totals{Counts: make(FrequencyTable)}}
}

// Add merges one platform result.
func (a *Aggregator) Add(res PlatformResult) {
	a.totals.Platforms = append(a.totals.Platforms, res.Summary)
	for key, n := range res.Counts {
		a.totals.Counts[key] += n
	}
	if res.Unavailable() {
		a.totals.Unavailable = append(a.totals.Unavailable, res.Summary.Platform)
	}
}

// Totals returns the merged state. The Aggregator must not be used after.
func (a *Aggregator) Totals() *Totals {
	return &a.totals
}

// Merge folds results in the given order.
func Merge(results ...PlatformResult) *Totals {
	agg := NewAggregator()
	for _, r := range results {
		agg.Add(r)
	}
	return agg.Totals()
}

// SortCounts flattens a frequency table, highest count first.
func SortCounts(counts FrequencyTable) []LicenseCount {
	out := make([]LicenseCount, 0, len(counts))
	for license, n := range counts {
		out = append(out, LicenseCount{License: license, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].License < out[j].License
	})
	return out
}
