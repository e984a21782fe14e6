// Package inventory defines the normalized snapshot types produced by the
// three node data sources: the GPU device process table, the SLURM job
// listing, and the Docker container runtime.
//
// Each collector exposes a pure data-producing contract and fails soft: a
// source that is unavailable or unparseable yields an empty result for that
// source plus a CollectionError, never a failure of the other collectors.
//
// The concrete collectors live in the gpu, slurm, and docker subpackages.
package inventory
