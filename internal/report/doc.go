// Package report writes the artifacts of an audit run.
//
// Three JSON files are always written: the per-platform validity counts,
// the global frequency table sorted by count, and the unsorted global
// frequency table. A Prometheus textfile artifact is written when its file
// name is configured. Every file is written to a temp file in the output
// directory and renamed into place, so readers never observe a partial
// artifact.
package report
