package watchdog

import "path/filepath"

// Role is the side of the pair a process plays.
type Role int

const (
	// Primary is the supervised application.
	Primary Role = iota
	// Guardian is the spawned monitor.
	Guardian
)

func (r Role) String() string {
	if r == Guardian {
		return "guardian"
	}
	return "primary"
}

// Counterpart returns the other side of the pair.
func (r Role) Counterpart() Role {
	if r == Guardian {
		return Primary
	}
	return Guardian
}

// DetectRole returns Guardian when argv0 names the guardian program, either
// as the same path or by the same base name.
func DetectRole(argv0, guardianPath string) Role {
	if argv0 == "" || guardianPath == "" {
		return Primary
	}
	if filepath.Clean(argv0) == filepath.Clean(guardianPath) {
		return Guardian
	}
	if filepath.Base(argv0) == filepath.Base(guardianPath) {
		return Guardian
	}
	return Primary
}
