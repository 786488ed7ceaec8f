package roles

// Resolve decides the landing route for an identity. It is used at explicit
// login and on landing-page auto-redirect and never touches a store.
//
//	uid empty                      -> /login
//	role missing                   -> /login
//	role == target or role == admin -> /<target>/dashboard
//	otherwise                      -> /login
//
// An admin asking for the student area lands on the student dashboard: the
// requested target picks the dashboard, the role only decides admission.
func Resolve(uid string, role *Role, target Role) string {
	if uid == "" || role == nil {
		return LoginRoute
	}
	if !role.Satisfies(target) {
		return LoginRoute
	}
	return target.Dashboard()
}

// ResolveString is Resolve for raw stored values. Unknown roles resolve as missing.
func ResolveString(uid, role, target string) string {
	t, ok := Parse(target)
	if !ok {
		return LoginRoute
	}
	r, ok := Parse(role)
	if !ok {
		return Resolve(uid, nil, t)
	}
	return Resolve(uid, &r, t)
}
