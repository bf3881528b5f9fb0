package audit

import (
	"time"

	"github.com/obsidianstack/licenseaudit/internal/repodata"
	"github.com/obsidianstack/licenseaudit/internal/snapshot"
)

// InvalidKey is the frequency-table key for licenses that fail to parse.
const InvalidKey = "INVALID"

// Candidate is the surviving record for one package name.
type Candidate struct {
	Timestamp repodata.Timestamp
	License   string
}

// PlatformSummary is the validity count for one platform.
// JSON names match the validity artifact.
type PlatformSummary struct {
	Platform string `json:"arch"`
	Valid    uint32 `json:"valid_licenses"`
	Invalid  uint32 `json:"invalid_licenses"`
}

// Total is Valid + Invalid.
func (s PlatformSummary) Total() uint64 {
	return uint64(s.Valid) + uint64(s.Invalid)
}

// FrequencyTable maps a canonical license expression, or InvalidKey, to the
// number of packages carrying it.
type FrequencyTable map[string]uint64

// Total sums all counts.
func (f FrequencyTable) Total() uint64 {
	var n uint64
	for _, c := range f {
		n += c
	}
	return n
}

// LicenseCount is one row of the sorted frequency artifact.
type LicenseCount struct {
	License string `json:"license"`
	Count   uint64 `json:"count"`
}

// PlatformResult is everything one platform task hands to the aggregator.
type PlatformResult struct {
	Summary PlatformSummary
	Counts  FrequencyTable

	State snapshot.State
	Err   error // cause when State is unavailable

	Records    int // records extracted before dedup
	Candidates int // names left after dedup
	Elapsed    time.Duration
}

// Unavailable reports whether the platform's snapshot failed to load.
func (r PlatformResult) Unavailable() bool {
	return r.State == snapshot.StateUnavailable
}
