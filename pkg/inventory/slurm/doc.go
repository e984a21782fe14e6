// Package slurm collects the scheduler job table from the SLURM CLI.
//
// The collector combines two sources: the squeue tabular listing (job id,
// owner, name, state, node list) and the per-job scontrol descriptor, from
// which it extracts the GPU index specification (comma-separated values and
// ranges, e.g. "0,2-4"), the working directory, and the elapsed run time.
//
// A job whose GPU index specification is malformed contributes an empty
// index set; it never aborts the collection. Parsing helpers are exported
// for independent testing.
package slurm
