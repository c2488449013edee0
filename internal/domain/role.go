package domain

import "fmt"

// Role enumerates account roles. The set is closed.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOwner    Role = "OWNER"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleCustomer, RoleOwner}
}

// ParseRole maps a role name to the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleOwner:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Authority is the single capability granted to an authenticated caller of this role.
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

func (r Role) String() string {
	return string(r)
}
