package enums

import "fmt"

// AccountRole scopes what an authenticated account may do.
type AccountRole string

const (
	RoleCustomer AccountRole = "customer"
	RoleAdmin    AccountRole = "admin"
)

var validAccountRoles = []AccountRole{
	RoleCustomer,
	RoleAdmin,
}

func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the value matches a known role.
func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAccountRole converts raw input into AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}
