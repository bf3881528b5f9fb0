package audit

import (
	"log/slog"

	"github.com/obsidianstack/licenseaudit/internal/repodata"
	"github.com/obsidianstack/licenseaudit/internal/snapshot"
)

// Process runs extract, dedup and classify over one loaded snapshot.
//
// An unavailable snapshot yields a zero summary and an empty table; the
// platform still reports so the artifacts list every configured platform.
func Process(snap snapshot.Result) PlatformResult {
	out := PlatformResult{
		State:   snap.State,
		Err:     snap.Err,
		Elapsed: snap.Elapsed,
	}

	if !snap.Loaded() {
		slog.Warn("audit: snapshot unavailable, counting zero records",
			"platform", snap.Platform, "err", snap.Err)
		out.Summary = PlatformSummary{Platform: snap.Platform}
		out.Counts = make(FrequencyTable)
		return out
	}

	records, st := repodata.Extract(snap.Tree)
	candidates := Deduplicate(records)
	out.Summary, out.Counts = Summarize(snap.Platform, candidates)
	out.Records = len(records)
	out.Candidates = len(candidates)

	slog.Debug("audit: platform extracted",
		"platform", snap.Platform,
		"entries", st.Entries,
		"null_license", st.NullLicense,
		"malformed", st.Malformed,
		"candidates", out.Candidates,
	)
	return out
}
