// Package auth - rolescope.go defines the role scope policy: which audit
// categories each caller role may view.
//
// The policy is an explicit table keyed by role rather than a special case for
// a single restricted role. Roles absent from the table get an EMPTY allowlist,
// i.e. new or unknown roles default to the most restrictive scope and must be
// granted visibility deliberately. Defaulting unknown roles to full access
// would silently over-permission every role that was never considered when the
// policy was written.
package auth

import "github.com/scholaris/scholaris/internal/db/models"

// Role is a user role name as stored in the user directory.
type Role string

const (
	RoleICTCoordinator Role = "ICT_Coordinator"
	RolePrincipal      Role = "Principal"
	RoleAdmin          Role = "Admin"
	RoleRegistrar      Role = "Registrar"
	RoleAdviser        Role = "Adviser"
)

// CategoryScope is the set of audit categories a role may view. All=true means
// unrestricted; otherwise only the listed categories are visible.
type CategoryScope struct {
	All        bool
	Categories []string
}

// Allows reports whether the scope permits viewing the given category.
func (s CategoryScope) Allows(category string) bool {
	if s.All {
		return true
	}
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Allowlist returns the categories visible under this scope, or nil when the
// scope is unrestricted. Repositories use nil to mean "no scope clause".
func (s CategoryScope) Allowlist() []string {
	if s.All {
		return nil
	}
	return s.Categories
}

// Unrestricted is the scope of fully privileged roles.
var Unrestricted = CategoryScope{All: true}

// registrarCategories is the fixed allowlist of the records-office role: the
// student-facing record types it administers, nothing account-related.
var registrarCategories = []string{
	models.CategoryStudent,
	models.CategoryEnrollment,
	models.CategorySection,
	models.CategorySectionAssignment,
	models.CategoryStudentRevisionRequest,
	models.CategoryDocumentSubmission,
}

// roleScopes is the policy table. Extend it here when a new role needs audit
// visibility; anything not listed sees nothing.
var roleScopes = map[Role]CategoryScope{
	RoleICTCoordinator: Unrestricted,
	RolePrincipal:      Unrestricted,
	RoleAdmin:          Unrestricted,
	RoleRegistrar:      {Categories: registrarCategories},
}

// ScopeForRole resolves a role to its category scope. Unknown roles get an
// empty allowlist.
func ScopeForRole(role Role) CategoryScope {
	if scope, ok := roleScopes[role]; ok {
		return scope
	}
	return CategoryScope{Categories: []string{}}
}
