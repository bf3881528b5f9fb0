package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/licenseaudit/internal/repodata"
	"github.com/obsidianstack/licenseaudit/internal/snapshot"
)

func rec(name, license string, ts int64) repodata.Record {
	return repodata.Record{Name: name, License: license, Timestamp: repodata.Numeric(ts)}
}

// loaded builds a loaded snapshot result from a repodata JSON document.
func loaded(t *testing.T, platform, doc string) snapshot.Result {
	t.Helper()
	tree, err := repodata.Parse([]byte(doc))
	require.NoError(t, err)
	return snapshot.Result{Platform: platform, State: snapshot.StateLoaded, Tree: tree}
}

// --- Deduplicator ---

func TestDeduplicate_KeepsMaxTimestamp(t *testing.T) {
	records := []repodata.Record{
		rec("numpy", "BSD-3-Clause", 300),
		rec("numpy", "MIT", 100),
		rec("numpy", "Apache-2.0", 500),
		rec("numpy", "ISC", 200),
		rec("zlib", "Zlib", 10),
	}
	got := Deduplicate(records)

	require.Len(t, got, 2)
	assert.Equal(t, Candidate{Timestamp: repodata.Numeric(500), License: "Apache-2.0"}, got["numpy"])
	assert.Equal(t, Candidate{Timestamp: repodata.Numeric(10), License: "Zlib"}, got["zlib"])
}

func TestDeduplicate_SurvivorIsMaxForEveryName(t *testing.T) {
	var records []repodata.Record
	maxTS := map[string]int64{}
	for i := int64(0); i < 300; i++ {
		name := []string{"a", "b", "c", "d", "e", "f", "g"}[i%7]
		ts := (i * 7919) % 1000
		records = append(records, rec(name, "MIT", ts))
		if cur, ok := maxTS[name]; !ok || ts > cur {
			maxTS[name] = ts
		}
	}

	got := Deduplicate(records)
	require.Len(t, got, len(maxTS))
	for name, want := range maxTS {
		assert.Equal(t, repodata.Numeric(want), got[name].Timestamp, "timestamp for %s", name)
	}
}

func TestDeduplicate_TieBreakIsOrderIndependent(t *testing.T) {
	forward := Deduplicate([]repodata.Record{rec("pkg", "MIT", 100), rec("pkg", "Apache-2.0", 100)})
	backward := Deduplicate([]repodata.Record{rec("pkg", "Apache-2.0", 100), rec("pkg", "MIT", 100)})

	assert.Equal(t, Candidate{Timestamp: repodata.Numeric(100), License: "Apache-2.0"}, forward["pkg"])
	assert.Equal(t, forward, backward)
}

func TestDeduplicate_TextualTimestamps(t *testing.T) {
	records := []repodata.Record{
		{Name: "pkg", License: "MIT", Timestamp: repodata.Numeric(9_999_999_999)},
		{Name: "pkg", License: "Zlib", Timestamp: repodata.Textual("2023-05-01T00:00:00Z")},
		{Name: "pkg", License: "ISC", Timestamp: repodata.Textual("2022-01-01T00:00:00Z")},
		{Name: "only-text", License: "BSD-3-Clause", Timestamp: repodata.Textual("yesterday")},
	}
	got := Deduplicate(records)

	// Textual timestamps order after numeric ones, lexically among themselves.
	assert.Equal(t, Candidate{Timestamp: repodata.Textual("2023-05-01T00:00:00Z"), License: "Zlib"}, got["pkg"])
	assert.Equal(t, "BSD-3-Clause", got["only-text"].License)
}

func TestProcess_NonNumericTimestampIsCounted(t *testing.T) {
	snap := loaded(t, "noarch", `{
	  "packages": {
	    "a-1-0.tar.bz2": {"name": "a", "license": "MIT", "timestamp": "2023-05-01T00:00:00Z"}
	  },
	  "packages.conda": {
	    "b-1-0.conda": {"name": "b", "license": "bogus license", "timestamp": "soon"}
	  }
	}`)

	res := Process(snap)

	assert.Equal(t, PlatformSummary{Platform: "noarch", Valid: 1, Invalid: 1}, res.Summary)
	assert.Equal(t, FrequencyTable{"MIT": 1, InvalidKey: 1}, res.Counts)
}

func TestDeduplicate_Empty(t *testing.T) {
	assert.Empty(t, Deduplicate(nil))
}

// --- Classifier ---

func TestClassify(t *testing.T) {
	valid := map[string]string{
		"MIT":               "MIT",
		"Apache-2.0 OR MIT": "Apache-2.0 OR MIT",
		"apache-2.0 or mit": "Apache-2.0 OR MIT",
		"(GPL-2.0-only WITH Classpath-exception-2.0)": "GPL-2.0-only WITH Classpath-exception-2.0",
	}
	for in, key := range valid {
		assert.Equal(t, Classification{Valid: true, Key: key}, Classify(in), "Classify(%q)", in)
	}

	for _, in := range []string{"", "not-a-license!!", "(MIT OR Apache-2.0", "not-a-license"} {
		assert.Equal(t, Classification{Key: InvalidKey}, Classify(in), "Classify(%q)", in)
	}
}

func TestSummarize_CountsEveryCandidateOnce(t *testing.T) {
	cands := map[string]Candidate{
		"a": {repodata.Numeric(1), "MIT"},
		"b": {repodata.Numeric(1), "MIT"},
		"c": {repodata.Numeric(1), "(MIT)"},
		"d": {repodata.Numeric(1), "Apache-2.0 OR MIT"},
		"e": {repodata.Numeric(1), "GPL"},
		"f": {repodata.Numeric(1), "what is this"},
		"g": {repodata.Numeric(1), ""},
	}
	sum, counts := Summarize("linux-64", cands)

	assert.Equal(t, PlatformSummary{Platform: "linux-64", Valid: 4, Invalid: 3}, sum)
	assert.Equal(t, uint64(len(cands)), sum.Total())
	assert.Equal(t, FrequencyTable{"MIT": 3, "Apache-2.0 OR MIT": 1, InvalidKey: 3}, counts)
	assert.Equal(t, sum.Total(), counts.Total())
}

// --- Process ---

func TestProcess_EndToEndScenario(t *testing.T) {
	snap := loaded(t, "linux-64", `{
	  "packages": {
	    "pkg-a-1.0-0.tar.bz2": {"name": "pkg-a", "license": "MIT", "timestamp": 100}
	  },
	  "packages.conda": {
	    "pkg-a-2.0-0.conda": {"name": "pkg-a", "license": "not-a-license", "timestamp": 200}
	  }
	}`)

	res := Process(snap)

	assert.Equal(t, PlatformSummary{Platform: "linux-64", Valid: 0, Invalid: 1}, res.Summary)
	assert.Equal(t, FrequencyTable{InvalidKey: 1}, res.Counts)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Candidates)
}

func TestProcess_StringAndNumberTimestampsCompareEqual(t *testing.T) {
	snap := loaded(t, "noarch", `{
	  "packages": {
	    "x-1-0.tar.bz2": {"name": "x", "license": "MIT", "timestamp": "200"},
	    "y-1-0.tar.bz2": {"name": "y", "license": "MIT", "timestamp": "150"}
	  },
	  "packages.conda": {
	    "x-1-0.conda": {"name": "x", "license": "Zlib", "timestamp": 200},
	    "y-2-0.conda": {"name": "y", "license": "Zlib", "timestamp": 1000}
	  }
	}`)

	res := Process(snap)

	// x: tie at 200, MIT < Zlib wins. y: numeric 1000 beats "150".
	assert.Equal(t, FrequencyTable{"MIT": 1, "Zlib": 1}, res.Counts)
}

func TestProcess_NullLicenseAffectsNoCount(t *testing.T) {
	snap := loaded(t, "win-64", `{
	  "packages": {
	    "a-1-0.tar.bz2": {"name": "a", "license": null, "timestamp": 900},
	    "a-0-0.tar.bz2": {"name": "a", "license": "MIT", "timestamp": 100}
	  },
	  "packages.conda": {
	    "b-1-0.conda": {"name": "b", "license": null, "timestamp": 1}
	  }
	}`)

	res := Process(snap)

	// The null-license record never reaches dedup, so the older MIT build survives.
	assert.Equal(t, PlatformSummary{Platform: "win-64", Valid: 1}, res.Summary)
	assert.Equal(t, FrequencyTable{"MIT": 1}, res.Counts)
	assert.Equal(t, 1, res.Records)
}

func TestProcess_Unavailable(t *testing.T) {
	cause := errors.New("boom")
	res := Process(snapshot.Result{Platform: "osx-64", State: snapshot.StateUnavailable, Err: cause})

	assert.True(t, res.Unavailable())
	assert.ErrorIs(t, res.Err, cause)
	assert.Equal(t, PlatformSummary{Platform: "osx-64"}, res.Summary)
	assert.Empty(t, res.Counts)
	assert.NotNil(t, res.Counts)
}

func TestProcess_MalformedTree(t *testing.T) {
	res := Process(loaded(t, "osx-arm64", `{"packages": {"a.tar.bz2": {"name": "a", "license": "MIT", "timestamp": 1}}}`))
	assert.Equal(t, PlatformSummary{Platform: "osx-arm64"}, res.Summary)
	assert.False(t, res.Unavailable())
}

// --- Aggregator ---

func platformResult(platform string, valid, invalid uint32, counts FrequencyTable) PlatformResult {
	return PlatformResult{
		Summary: PlatformSummary{Platform: platform, Valid: valid, Invalid: invalid},
		Counts:  counts,
		State:   snapshot.StateLoaded,
	}
}

func TestMerge_SumsCountsAndKeepsOrder(t *testing.T) {
	a := platformResult("linux-64", 3, 1, FrequencyTable{"MIT": 2, "Zlib": 1, InvalidKey: 1})
	b := platformResult("noarch", 2, 2, FrequencyTable{"MIT": 2, InvalidKey: 2})

	got := Merge(a, b)

	assert.Equal(t, []PlatformSummary{a.Summary, b.Summary}, got.Platforms)
	assert.Equal(t, FrequencyTable{"MIT": 4, "Zlib": 1, InvalidKey: 3}, got.Counts)
	assert.Empty(t, got.Unavailable)
}

func TestMerge_IsCommutative(t *testing.T) {
	a := platformResult("linux-64", 2, 0, FrequencyTable{"MIT": 1, "ISC": 1})
	b := platformResult("osx-64", 1, 1, FrequencyTable{"MIT": 1, InvalidKey: 1})
	c := platformResult("win-64", 0, 2, FrequencyTable{InvalidKey: 2})

	want := Merge(a, b, c).Counts
	for _, order := range [][]PlatformResult{{c, b, a}, {b, a, c}, {a, c, b}} {
		assert.Equal(t, want, Merge(order...).Counts)
	}
}

func TestMerge_TotalMatchesSummaries(t *testing.T) {
	got := Merge(
		platformResult("linux-64", 5, 2, FrequencyTable{"MIT": 5, InvalidKey: 2}),
		platformResult("noarch", 1, 0, FrequencyTable{"Zlib": 1}),
	)
	var sum uint64
	for _, p := range got.Platforms {
		sum += p.Total()
	}
	assert.Equal(t, sum, got.Counts.Total())
}

func TestMerge_TracksUnavailable(t *testing.T) {
	down := PlatformResult{
		Summary: PlatformSummary{Platform: "win-64"},
		Counts:  FrequencyTable{},
		State:   snapshot.StateUnavailable,
	}
	got := Merge(platformResult("linux-64", 1, 0, FrequencyTable{"MIT": 1}), down)

	assert.Equal(t, []string{"win-64"}, got.Unavailable)
	assert.False(t, got.Available("win-64"))
	assert.True(t, got.Available("linux-64"))
	assert.Len(t, got.Platforms, 2)
}

func TestSortCounts(t *testing.T) {
	got := SortCounts(FrequencyTable{"MIT": 5, "Zlib": 1, InvalidKey: 5, "BSD-3-Clause": 3})
	assert.Equal(t, []LicenseCount{
		{License: InvalidKey, Count: 5},
		{License: "MIT", Count: 5},
		{License: "BSD-3-Clause", Count: 3},
		{License: "Zlib", Count: 1},
	}, got)
	assert.Empty(t, SortCounts(nil))
}

// --- Runner ---

type fakeLoader struct {
	docs map[string]string

	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
	calls    atomic.Int32
}

func (f *fakeLoader) Load(ctx context.Context, platform string) snapshot.Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return snapshot.Result{Platform: platform, State: snapshot.StateUnavailable, Err: ctx.Err()}
		}
	}

	doc, ok := f.docs[platform]
	if !ok {
		return snapshot.Result{Platform: platform, State: snapshot.StateUnavailable, Err: errors.New("404")}
	}
	tree, err := repodata.Parse([]byte(doc))
	if err != nil {
		return snapshot.Result{Platform: platform, State: snapshot.StateUnavailable, Err: err}
	}
	return snapshot.Result{Platform: platform, State: snapshot.StateLoaded, Tree: tree}
}

const (
	linuxDoc = `{"packages": {
	    "a-1.tar.bz2": {"name": "a", "license": "MIT", "timestamp": 1},
	    "b-1.tar.bz2": {"name": "b", "license": "Apache-2.0", "timestamp": 1}
	  }, "packages.conda": {
	    "a-2.conda": {"name": "a", "license": "MIT", "timestamp": 2},
	    "c-1.conda": {"name": "c", "license": "GPL v3", "timestamp": 1}
	  }}`
	noarchDoc = `{"packages": {}, "packages.conda": {
	    "d-1.conda": {"name": "d", "license": "MIT", "timestamp": 5}
	  }}`
)

func TestRunner_Run(t *testing.T) {
	loader := &fakeLoader{docs: map[string]string{"linux-64": linuxDoc, "noarch": noarchDoc}}
	r := NewRunner(loader, 2)

	var seen []string
	r.OnPlatform = func(res PlatformResult) { seen = append(seen, res.Summary.Platform) }

	totals, err := r.Run(context.Background(), []string{"linux-64", "noarch", "win-64"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"linux-64", "noarch", "win-64"}, seen)
	require.Len(t, totals.Platforms, 3)

	byPlatform := map[string]PlatformSummary{}
	for _, p := range totals.Platforms {
		byPlatform[p.Platform] = p
	}
	assert.Equal(t, PlatformSummary{Platform: "linux-64", Valid: 2, Invalid: 1}, byPlatform["linux-64"])
	assert.Equal(t, PlatformSummary{Platform: "noarch", Valid: 1}, byPlatform["noarch"])
	assert.Equal(t, PlatformSummary{Platform: "win-64"}, byPlatform["win-64"])

	assert.Equal(t, FrequencyTable{"MIT": 2, "Apache-2.0": 1, InvalidKey: 1}, totals.Counts)
	assert.Equal(t, []string{"win-64"}, totals.Unavailable)

	// Completion order of the summaries matches the callback order.
	for i, p := range totals.Platforms {
		assert.Equal(t, seen[i], p.Platform)
	}
}

func TestRunner_BoundsParallelism(t *testing.T) {
	loader := &fakeLoader{docs: map[string]string{}, delay: 20 * time.Millisecond}
	platforms := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}

	_, err := NewRunner(loader, 3).Run(context.Background(), platforms)
	require.NoError(t, err)

	assert.Equal(t, int32(len(platforms)), loader.calls.Load())
	assert.LessOrEqual(t, loader.peak, 3)
	assert.GreaterOrEqual(t, loader.peak, 1)
}

func TestRunner_DefaultWorkers(t *testing.T) {
	r := NewRunner(&fakeLoader{}, 0)
	assert.Positive(t, r.workers)
}

func TestRunner_Cancelled(t *testing.T) {
	loader := &fakeLoader{docs: map[string]string{"linux-64": linuxDoc}, delay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	totals, err := NewRunner(loader, 1).Run(ctx, []string{"linux-64", "noarch"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, totals)
}
