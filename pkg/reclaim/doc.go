// Package reclaim terminates orphan GPU processes with a two-phase
// protocol and an append-only audit trail.
//
// Each reclamation runs the per-process state machine
//
//	PENDING -> GRACEFUL_SENT -> (TERMINATED | FORCE_SENT -> TERMINATED | FAILED)
//
// A graceful termination signal is sent first as a fire-and-forget request;
// after a fixed grace window the process liveness is re-checked and a
// still-alive process receives an unconditional kill. A process that has
// already exited by the time reclamation runs — or that vanishes between
// the liveness check and the signal — is treated as terminated without
// forcing, never as an error. Signal failures are terminal for that process
// for the current cycle only; the next cycle re-evaluates from scratch.
//
// Every terminated process produces exactly one KillRecord appended to the
// audit log, a human-auditable text file that is never mutated or truncated
// by this system.
package reclaim
