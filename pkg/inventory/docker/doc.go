// Package docker collects container records from the Docker engine API.
//
// For every running container the collector captures its name, bind-mount
// metadata, and the set of pids inside the container's process namespace
// (via the engine's top endpoint). Container ownership is inferred
// positionally from the first mount source path; the segment position is
// configurable policy, not a hard-coded assumption, and containers without
// mounts carry the "unknown" owner sentinel.
package docker
