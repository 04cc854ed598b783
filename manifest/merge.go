package manifest

import (
	"fmt"

	"github.com/merlin-labs/merlin/core"
)

// Policy selects how Merge treats an incoming tool whose name collides with
// an existing entry.
type Policy string

const (
	// PolicyReplace overwrites the base entry with the incoming descriptor.
	PolicyReplace Policy = "replace"
	// PolicySkip keeps the base entry and drops the incoming one.
	PolicySkip Policy = "skip"
	// PolicyRename keeps both, renaming the incoming entry with a numeric
	// suffix.
	PolicyRename Policy = "rename"
)

// ParsePolicy validates a policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyReplace, PolicySkip, PolicyRename:
		return Policy(s), nil
	default:
		return "", core.Errorf(core.CodeSchema, "unknown merge policy %q (want replace, skip, or rename)", s)
	}
}

// Collision reports one name clash encountered during a merge.
type Collision struct {
	Name       string `json:"name"`
	Resolution Policy `json:"resolution"`
	// RenamedTo is set when Resolution is rename.
	RenamedTo string `json:"renamed_to,omitempty"`
}

// Merge applies incoming on top of base under the given policy. Neither input
// is mutated; the merged manifest preserves base order with new incoming
// entries appended in their own order.
func Merge(base, incoming *core.Manifest, policy Policy) (*core.Manifest, []Collision, error) {
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, nil, err
	}

	merged := base.Clone()
	names := make(map[string]struct{}, len(merged.Tools))
	for _, t := range merged.Tools {
		names[t.Name] = struct{}{}
	}

	var collisions []Collision
	for _, t := range incoming.Tools {
		in := t.Clone()
		if _, exists := names[in.Name]; !exists {
			merged.Tools = append(merged.Tools, in)
			names[in.Name] = struct{}{}
			continue
		}

		switch policy {
		case PolicyReplace:
			merged.Upsert(in)
			collisions = append(collisions, Collision{Name: in.Name, Resolution: PolicyReplace})
		case PolicySkip:
			collisions = append(collisions, Collision{Name: in.Name, Resolution: PolicySkip})
		case PolicyRename:
			renamed := nextFreeName(in.Name, names)
			collisions = append(collisions, Collision{Name: in.Name, Resolution: PolicyRename, RenamedTo: renamed})
			in.Name = renamed
			merged.Tools = append(merged.Tools, in)
			names[renamed] = struct{}{}
		}
	}
	return merged, collisions, nil
}

func nextFreeName(name string, taken map[string]struct{}) string {
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
