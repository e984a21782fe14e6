// Package sweep orchestrates one reclamation cycle: parallel inventory
// collection, per-process attribution, two-phase reclamation of orphans,
// and report assembly. Collection is fail-soft per source; a cycle aborts
// only when every source fails or the process tree cannot be captured.
package sweep
