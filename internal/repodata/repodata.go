// Package repodata decodes a channel snapshot (repodata.json) and extracts the
// package records the license audit consumes.
//
// A snapshot carries two sibling collections keyed by artifact file name:
// "packages" (legacy .tar.bz2 builds) and "packages.conda" (.conda builds).
// Extract walks both as one logical stream and drops entries that cannot be
// audited (null license, missing or mistyped name/license/timestamp).
// Timestamps that are strings but not numbers are kept; see Timestamp.
package repodata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Collection keys inside a snapshot.
const (
	KeyPackages      = "packages"
	KeyPackagesConda = "packages.conda"
)

// Tree is the top level of a decoded snapshot. Values stay raw until Extract
// walks them, so unrelated sections (info, removed, ...) are never decoded.
type Tree map[string]json.RawMessage

// Record is one auditable package entry.
type Record struct {
	// Filename is the artifact key the entry was stored under.
	Filename  string
	Name      string
	License   string
	Timestamp Timestamp
}

// Stats counts what Extract saw.
type Stats struct {
	Entries int // raw entries across both collections
	Kept    int // entries that became Records
	// NullLicense counts entries excluded because the license was absent or null.
	NullLicense int
	// Malformed counts entries skipped for a missing or mistyped field.
	Malformed int
}

// Parse decodes a snapshot payload into a Tree.
// The payload must be a JSON object.
func Parse(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("repodata: decode JSON: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("repodata: snapshot is not a JSON object")
	}
	return t, nil
}

// Extract returns the auditable records of both collections, legacy entries
// first, each collection in file-name order.
//
// A nil tree, or a tree where either collection is absent or not an object,
// yields no records.
func Extract(t Tree) ([]Record, Stats) {
	var st Stats
	if t == nil {
		return nil, st
	}

	var collections [2]map[string]json.RawMessage
	for i, key := range []string{KeyPackages, KeyPackagesConda} {
		raw, ok := t[key]
		if !ok {
			return nil, st
		}
		if err := json.Unmarshal(raw, &collections[i]); err != nil || collections[i] == nil {
			return nil, st
		}
	}

	var out []Record
	for _, coll := range collections {
		names := make([]string, 0, len(coll))
		for fn := range coll {
			names = append(names, fn)
		}
		sort.Strings(names)

		for _, fn := range names {
			st.Entries++
			rec, reason := decodeRecord(fn, coll[fn])
			switch reason {
			case skipNone:
				st.Kept++
				out = append(out, rec)
			case skipNullLicense:
				st.NullLicense++
			default:
				st.Malformed++
			}
		}
	}
	return out, st
}

type skipReason int

const (
	skipNone skipReason = iota
	skipNullLicense
	skipMalformed
)

// decodeRecord applies the three-way filter: license present and non-null,
// name and license are strings, timestamp is a number or a string.
func decodeRecord(filename string, raw json.RawMessage) (Record, skipReason) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Record{}, skipMalformed
	}

	lic, ok := fields["license"]
	if !ok || lic == nil {
		return Record{}, skipNullLicense
	}

	name, nameOK := fields["name"].(string)
	license, licOK := lic.(string)
	if !nameOK || !licOK {
		return Record{}, skipMalformed
	}

	ts, ok := ParseTimestamp(fields["timestamp"])
	if !ok {
		return Record{}, skipMalformed
	}

	return Record{Filename: filename, Name: name, License: license, Timestamp: ts}, skipNone
}

// Timestamp is the build time of a record, used to pick the newest build of a
// package. Numbers and numeric strings compare by value, so "200" equals 200.
// A string that is not a number is kept verbatim; textual timestamps order
// after every numeric one and lexically among themselves.
type Timestamp struct {
	Value   int64
	Text    string
	Textual bool
}

// Numeric returns the Timestamp for n.
func Numeric(n int64) Timestamp {
	return Timestamp{Value: n}
}

// Textual returns the Timestamp for a string that does not encode a number.
func Textual(s string) Timestamp {
	return Timestamp{Text: s, Textual: true}
}

// Compare returns -1, 0 or +1 as t is older than, equal to or newer than o.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Textual != o.Textual:
		if t.Textual {
			return 1
		}
		return -1
	case t.Textual:
		return strings.Compare(t.Text, o.Text)
	case t.Value < o.Value:
		return -1
	case t.Value > o.Value:
		return 1
	default:
		return 0
	}
}

func (t Timestamp) String() string {
	if t.Textual {
		return strconv.Quote(t.Text)
	}
	return strconv.FormatInt(t.Value, 10)
}

// ParseTimestamp reads a timestamp given as a JSON number or a string.
// Numeric strings decode like numbers, with fractions truncated toward zero
// and values beyond the int64 range clamped to it. Other strings become
// textual timestamps. ok is false only for a missing or non-scalar value.
func ParseTimestamp(v any) (Timestamp, bool) {
	switch raw := v.(type) {
	case json.Number:
		return numberTimestamp(string(raw))
	case string:
		if ts, ok := numberTimestamp(raw); ok {
			return ts, true
		}
		return Textual(raw), true
	case float64:
		return clamp(raw)
	case int64:
		return Numeric(raw), true
	case int:
		return Numeric(int64(raw)), true
	default:
		return Timestamp{}, false
	}
}

func numberTimestamp(s string) (Timestamp, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Numeric(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		// overflow or underflow; f is already ±Inf or ±0
	case err != nil, math.IsInf(f, 0):
		return Timestamp{}, false
	}
	return clamp(f)
}

// clamp truncates f toward zero and saturates at the int64 bounds.
func clamp(f float64) (Timestamp, bool) {
	switch {
	case math.IsNaN(f):
		return Timestamp{}, false
	case f >= math.MaxInt64:
		return Numeric(math.MaxInt64), true
	case f < math.MinInt64:
		return Numeric(math.MinInt64), true
	default:
		return Numeric(int64(f)), true
	}
}
