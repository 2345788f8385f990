package auth

// RouteAccess declares who may call a route. It is attached to the route
// at registration time and consulted by the auth middleware; handlers
// never re-check roles themselves.
type RouteAccess struct {
	// Public routes skip bearer extraction entirely
	Public bool
	// AllowedRoles lists the roles admitted to the route. Membership is
	// flat: an ADMIN token does not satisfy a TEACHER only route. Empty
	// with Public false means any authenticated caller.
	AllowedRoles RoleSet
}

// PublicAccess marks a route as reachable without a token
func PublicAccess() RouteAccess {
	return RouteAccess{Public: true}
}

// RequireAuthenticated admits any caller with a valid access token
func RequireAuthenticated() RouteAccess {
	return RouteAccess{}
}

// RequireRoles admits only callers whose token role is in the given set
func RequireRoles(roles ...UserRole) RouteAccess {
	return RouteAccess{AllowedRoles: NewRoleSet(roles...)}
}

// Allows reports whether a caller holding the given role may pass.
// The zero value admits any authenticated caller.
func (a RouteAccess) Allows(role UserRole) bool {
	if a.Public {
		return true
	}
	if a.AllowedRoles.IsEmpty() {
		return true
	}
	return a.AllowedRoles.Contains(role)
}
