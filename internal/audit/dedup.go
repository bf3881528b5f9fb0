package audit

import "github.com/obsidianstack/licenseaudit/internal/repodata"

// Deduplicate keeps one Candidate per package name: the record with the
// greatest timestamp under repodata.Timestamp ordering. On equal timestamps the lexicographically smaller
// license text wins, so the survivor does not depend on record order.
func Deduplicate(records []repodata.Record) map[string]Candidate {
	out := make(map[string]Candidate, len(records))
	for _, r := range records {
		cur, seen := out[r.Name]
		if seen && !supersedes(r, cur) {
			continue
		}
		out[r.Name] = Candidate{Timestamp: r.Timestamp, License: r.License}
	}
	return out
}

func supersedes(r repodata.Record, cur Candidate) bool {
	if c := r.Timestamp.Compare(cur.Timestamp); c != 0 {
		return c > 0
	}
	return r.License < cur.License
}
