// Package proctree provides an owned snapshot of the host process table and
// the bounded-depth membership test used to correlate GPU processes with
// scheduler job supervisors.
//
// A Snapshot is captured once per cycle and traversed without re-querying
// live OS state. The membership test walks the descendant tree beneath a
// job's supervisor process to a fixed generation depth: container runtimes
// and shells interpose extra process layers, so this is a membership test,
// not an identity test.
//
// Ownership and liveness lookups touch live OS state and are deliberately
// kept outside the snapshot.
package proctree
