package models

import (
	"strings"

	dErrors "custodia/pkg/domain-errors"
)

// Role is an administrative capability. Roles are additive: a party may
// hold several, and each is granted and revoked independently.
type Role string

const (
	// RoleAdmin grants and revokes the other roles.
	RoleAdmin Role = "admin"
	// RolePolicyAdmin registers and deactivates rule sets and binds jurisdictions.
	RolePolicyAdmin Role = "policy_admin"
	// RoleAssetAdmin toggles exemptions and compliance and configures FX.
	RoleAssetAdmin Role = "asset_admin"
	// RoleRepoAdmin configures the repo engine and its collaborators.
	RoleRepoAdmin Role = "repo_admin"
)

var validRoles = map[Role]bool{
	RoleAdmin:       true,
	RolePolicyAdmin: true,
	RoleAssetAdmin:  true,
	RoleRepoAdmin:   true,
}

// AllRoles lists every role, used when bootstrapping the first admin.
func AllRoles() []Role {
	return []Role{RoleAdmin, RolePolicyAdmin, RoleAssetAdmin, RoleRepoAdmin}
}

// ParseRole validates an externally supplied role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
