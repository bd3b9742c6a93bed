package orchestrator

import (
	"strings"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// Caller roles.
const (
	RoleUser       = "User"
	RoleManager    = "Manager"
	RoleManagement = "Management"
	RoleSuperUser  = "Super User"
)

// FilterByIdentity keeps the rows the caller may certify. Users see their
// own rows, managers also their team's, Management and Super User everything.
// Unknown roles are treated as User. Names compare case-insensitively.
func FilterByIdentity(t *tabular.Table, user string, team []string, role string) *tabular.Table {
	role = strings.TrimSpace(role)
	if strings.EqualFold(role, RoleManagement) || strings.EqualFold(role, RoleSuperUser) {
		return t
	}

	allowed := map[string]struct{}{}
	add := func(name string) {
		if n := strings.ToLower(tabular.Clean(name)); n != "" {
			allowed[n] = struct{}{}
		}
	}
	add(user)
	if strings.EqualFold(role, RoleManager) {
		for _, member := range team {
			add(member)
		}
	}

	return t.Filter(func(r tabular.Row) bool {
		_, ok := allowed[strings.ToLower(tabular.Clean(r.Str(model.FieldCreatedUser)))]
		return ok
	})
}
