package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Label returns name when set, otherwise a unique debug label with the given prefix.
func Label(prefix, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

// DerivedLabel names an object produced from another one, e.g. the compute
// layout built out of a mesh layout.
func DerivedLabel(parent, suffix string) string {
	if parent == "" {
		return Label(suffix, "")
	}
	return parent + "." + suffix
}
