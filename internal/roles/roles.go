package roles

import "strings"

// Role is the capability tier gating which dashboard an identity may reach.
type Role string

const (
	Student Role = "student"
	Teacher Role = "teacher"
	Admin   Role = "admin"
)

// LoginRoute is where unresolved or mismatched identities are sent.
const LoginRoute = "/login"

// All lists every known role.
var All = []Role{Student, Teacher, Admin}

// Parse maps a stored string to a Role. Unknown values report ok=false.
func Parse(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case Student:
		return Student, true
	case Teacher:
		return Teacher, true
	case Admin:
		return Admin, true
	}
	return "", false
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case Student, Teacher, Admin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Satisfies reports whether r may enter the area reserved for target.
// Admin satisfies every target; no other role cross-satisfies.
func (r Role) Satisfies(target Role) bool {
	if !r.Valid() || !target.Valid() {
		return false
	}
	return r == target || r == Admin
}

// Dashboard returns the landing route of the role's dashboard.
func (r Role) Dashboard() string {
	return "/" + string(r) + "/dashboard"
}
