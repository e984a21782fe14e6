package docker

import (
	"strings"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

// DefaultOwnerSegment is the path component of a mount source that names
// the owning user under the /home/<user>/... layout convention.
const DefaultOwnerSegment = 1

// OwnerFromMount derives the owning user from a bind-mount source path by
// position: segment is the zero-based index into the non-empty,
// slash-separated components of the path ("/home/carol/data" with segment 1
// yields "carol"). This is a naming convention, not a guaranteed invariant;
// when the path is empty or too short the inventory.OwnerUnknown sentinel is
// returned, never an empty string.
func OwnerFromMount(path string, segment int) string {
	if segment < 0 {
		return inventory.OwnerUnknown
	}
	var components []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	if segment >= len(components) {
		return inventory.OwnerUnknown
	}
	return components[segment]
}
