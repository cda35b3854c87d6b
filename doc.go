// Package pake is a content-addressed build engine in the spirit of make,
// with two defining differences: invalidation is driven by hashes of
// results rather than file timestamps, and build rules are registered by
// host code rather than parsed from a makefile.
//
// A host populates the rule registry (exact, pattern, and virtual rules),
// then calls Build with one or more target names. The engine walks the
// dependency DAG depth-first, left to right, resolving each target at most
// once per run. A target is rebuilt only when its recorded input signature
// (rule identity plus ordered dependency results) or its on-disk content
// digest no longer matches the persistent state; otherwise the stored
// result is reused and the recipe never runs.
//
// # Targets and results
//
// File targets are canonicalized to root-relative "./" paths and produce a
// content digest result. Virtual targets are plain names producing any
// JSON-encodable value; the value's canonical encoding is what dependents
// compare against. A virtual recipe may return NoResult to record an
// Absent result, which no value ever equals, keeping dependents
// permanently dirty.
//
// # Built-in rules
//
// The virtual target "always" produces a fresh sentinel on every run, so
// anything that transitively depends on it always rebuilds. File targets
// with no matching rule fall back to hashing the existing source file. The
// virtual name "default" is built when no targets are given.
//
// # Persistence
//
// Results persist in a JSON state file (.pake-state by default) written
// atomically when Build returns, including on failure: results recorded
// before the failure survive. Optionally each run is also journaled to a
// SQLite database for later inspection.
//
// The engine is single-threaded: one recipe at a time, in deterministic
// DAG order. Context cancellation is observed between recipes; in-progress
// recipes are not forcibly cancelled.
package pake
