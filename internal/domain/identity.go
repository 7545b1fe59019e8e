package domain

import "fmt"

// Role is the closed set of account types of the portal.
// Replaces the legacy per-role table lookup keyed by a raw user_type string.
type Role string

const (
	RoleEleve          Role = "eleve"
	RoleParent         Role = "parent"
	RoleProfesseur     Role = "professeur"
	RoleVieScolaire    Role = "vie_scolaire"
	RoleAdministrateur Role = "administrateur"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleEleve, RoleParent, RoleProfesseur, RoleVieScolaire, RoleAdministrateur}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEleve, RoleParent, RoleProfesseur, RoleVieScolaire, RoleAdministrateur:
		return true
	}
	return false
}

// Identity identifies the acting user. It is passed explicitly into every
// service and repository call instead of being read from ambient session state.
type Identity struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// Key returns a stable string form usable as a cache or rate-limit key.
func (i Identity) Key() string {
	return fmt.Sprintf("%s:%d", i.Role, i.UserID)
}
