// Package timing owns verse timing data: decoding the timing service's raw
// payload, normalizing it into an immutable Table of verse intervals, and
// looking verses up by playback time through an Index.
//
// Responsibilities: raw payload decoding, validation and ordering of verse
// intervals, geometry parsing, time lookups and duration summaries.
// Key types: RawEntry, VerseInterval, Table, Index.
//
// Dependency rule: timing is a leaf package. It performs no I/O and holds no
// mutable state; Tables and Indexes may be shared freely between goroutines.
package timing
