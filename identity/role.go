package identity

import "strings"

// Role is a normalized role class.
type Role string

const (
	RoleSystemAdmin Role = "system_admin"
	RoleOrgAdmin    Role = "org_admin"
	RoleManager     Role = "manager"
	RoleInspector   Role = "inspector"
	RoleClient      Role = "client"
	// RoleUnknown is never granted by a role gate.
	RoleUnknown Role = "unknown"
)

// DefaultRole is given to self-provisioned users.
const DefaultRole = RoleClient

var roleSynonyms = map[string]Role{
	"system_admin": RoleSystemAdmin,
	"sysadmin":     RoleSystemAdmin,
	"super_admin":  RoleSystemAdmin,
	"superadmin":   RoleSystemAdmin,
	"root":         RoleSystemAdmin,

	"org_admin":          RoleOrgAdmin,
	"organization_admin": RoleOrgAdmin,
	"company_admin":      RoleOrgAdmin,
	"tenant_admin":       RoleOrgAdmin,

	"manager":    RoleManager,
	"supervisor": RoleManager,
	"gestor":     RoleManager,

	"inspector":  RoleInspector,
	"technician": RoleInspector,
	"tecnico":    RoleInspector,
	"auditor":    RoleInspector,

	"client":   RoleClient,
	"customer": RoleClient,
	"viewer":   RoleClient,
	"cliente":  RoleClient,
}

// NormalizeRole maps a stored or configured role string onto its class.
// Matching ignores case and treats '-' and spaces like '_'.
func NormalizeRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if role, ok := roleSynonyms[key]; ok {
		return role
	}
	return RoleUnknown
}

func (r Role) IsSystemAdmin() bool { return r == RoleSystemAdmin }

func (r Role) IsOrgAdmin() bool { return r == RoleOrgAdmin }

func (r Role) String() string { return string(r) }
