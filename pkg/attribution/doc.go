// Package attribution decides ownership of GPU compute processes.
//
// For every process observed on a GPU device the engine produces a verdict:
// the process belongs to a scheduler job, belongs to a container acting on
// behalf of a scheduler job, or is an orphan. The decision correlates three
// independently observed sources — the GPU process table, the scheduler job
// table, and the container runtime records — against an owned snapshot of
// the host process tree.
//
// A job is only ever a candidate for processes on devices it is scheduled
// on. A candidate wins when the process sits within a bounded number of
// generations beneath the job's supervisor process AND the ownership
// identity matches: the container's derived owner for containerized
// processes, the OS-level process owner otherwise. Tree proximity alone is
// necessary but not sufficient; the identity check guards against pid reuse
// and coincidental tree placement.
//
// Inconsistent observations (conflicting container claims, a process on an
// unresolvable device) are flagged as AmbiguityError and fail safe toward
// the orphan classification; they are never silently dropped.
package attribution
