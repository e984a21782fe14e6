package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

// engineAPI is the subset of the Docker engine client used by the
// collector. It enables fakes in tests.
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerTop(ctx context.Context, containerID string, arguments []string) (container.ContainerTopOKBody, error)
}

// Collector gathers container records from the Docker engine. It implements
// the inventory.ContainerCollector interface.
type Collector struct {
	// Host overrides the engine endpoint (DOCKER_HOST semantics). Empty
	// uses the environment defaults.
	Host string

	// OwnerSegment is the mount-source path component that names the
	// owning user. Zero value falls back to DefaultOwnerSegment.
	OwnerSegment int

	api engineAPI
}

// Collect returns one record per running container. Per-container inspect
// or top failures degrade that container only and are logged; a failure to
// reach the engine at all is a collection error.
func (c *Collector) Collect(ctx context.Context) ([]inventory.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("collecting container inventory")

	api := c.api
	if api == nil {
		cl, err := newEngineClient(c.Host)
		if err != nil {
			return nil, inventory.NewCollectionError("docker", err)
		}
		defer cl.Close()
		api = cl
	}

	list, err := api.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, inventory.NewCollectionError("docker", fmt.Errorf("listing containers: %w", err))
	}

	segment := c.OwnerSegment
	if segment == 0 {
		segment = DefaultOwnerSegment
	}

	records := make([]inventory.Container, 0, len(list))
	for _, item := range list {
		rec, err := c.inspectOne(ctx, api, item, segment)
		if err != nil {
			slog.Warn("container skipped",
				slog.String("container", shortID(item.ID)),
				slog.String("error", err.Error()))
			continue
		}
		records = append(records, rec)
	}

	slog.Debug("collected containers", slog.Int("count", len(records)))
	return records, nil
}

func (c *Collector) inspectOne(ctx context.Context, api engineAPI, item types.Container, segment int) (inventory.Container, error) {
	info, err := api.ContainerInspect(ctx, item.ID)
	if err != nil {
		return inventory.Container{}, fmt.Errorf("inspecting: %w", err)
	}

	rec := inventory.Container{
		ID:    item.ID,
		Name:  strings.TrimPrefix(info.Name, "/"),
		Owner: inventory.OwnerUnknown,
	}
	if len(info.Mounts) > 0 {
		rec.MountSource = info.Mounts[0].Source
		rec.Owner = OwnerFromMount(rec.MountSource, segment)
	}
	if info.HostConfig != nil {
		rec.Binds = info.HostConfig.Binds
	}

	top, err := api.ContainerTop(ctx, item.ID, nil)
	if err != nil {
		return inventory.Container{}, fmt.Errorf("listing member processes: %w", err)
	}
	rec.MemberPIDs = memberPIDs(top)

	return rec, nil
}

// memberPIDs extracts the host pids from an engine top response.
func memberPIDs(top container.ContainerTopOKBody) map[int]struct{} {
	pidCol := -1
	for i, title := range top.Titles {
		if strings.EqualFold(title, "PID") {
			pidCol = i
			break
		}
	}
	if pidCol < 0 {
		return nil
	}

	pids := make(map[int]struct{}, len(top.Processes))
	for _, row := range top.Processes {
		if pidCol >= len(row) {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(row[pidCol]))
		if err != nil {
			continue
		}
		pids[pid] = struct{}{}
	}
	return pids
}

func newEngineClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if strings.TrimSpace(host) != "" {
		opts = append(opts, client.WithHost(host))
	}
	cl, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to docker engine: %w", err)
	}
	return cl, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
