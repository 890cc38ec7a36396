package progress

import "fmt"

// Role identifies which side of a job a participant is on.
type Role string

const (
	// RoleWorker is the service provider doing the job.
	RoleWorker Role = "worker"
	// RoleClient is the job poster paying for it.
	RoleClient Role = "client"
)

func (r Role) String() string { return string(r) }

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleWorker || r == RoleClient }

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
