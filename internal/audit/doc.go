// Package audit turns platform snapshots into license validity counts.
//
// Per platform (process.go): records extracted from the snapshot are reduced
// to one Candidate per package name (dedup.go), every candidate's license is
// classified as a canonical SPDX expression or INVALID (classify.go), and the
// result is a PlatformSummary plus a FrequencyTable.
//
// Across platforms (aggregate.go): an Aggregator owned by a single goroutine
// merges PlatformResults in completion order into Totals. Runner (runner.go)
// fans platforms out to a bounded errgroup and fans results back in over a
// channel, so no lock guards the global tables.
package audit
