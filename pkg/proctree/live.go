package proctree

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Owner returns the account name owning pid.
func Owner(ctx context.Context, pid int) (string, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", fmt.Errorf("looking up pid %d: %w", pid, err)
	}
	user, err := p.UsernameWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving owner of pid %d: %w", pid, err)
	}
	return user, nil
}

// Alive reports whether pid currently exists.
func Alive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return false
	}
	return ok
}
