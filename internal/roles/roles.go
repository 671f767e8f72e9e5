// Package roles reduces a user's role memberships to one effective role and
// maps that role to its dashboard route.
package roles

import (
	"strings"

	"skrbl/internal/models"
)

// Role is a normalized (lowercase, trimmed) role name.
type Role string

const (
	Founder Role = "founder"
	Heir    Role = "heir"
	VIP     Role = "vip"
	Parent  Role = "parent"
	User    Role = "user"
)

// Fallback is the role of anonymous users and of users holding no known role.
const Fallback = User

// DefaultRoute is where users without a dedicated dashboard land.
const DefaultRoute = "/dashboard"

// priorityOrder lists the known roles from highest to lowest priority.
var priorityOrder = []Role{Founder, Heir, VIP, Parent, User}

var routes = map[Role]string{
	Founder: "/dashboard/founder",
	Heir:    "/dashboard/heir",
	VIP:     "/dashboard/vip",
	Parent:  "/dashboard/parent",
	User:    DefaultRoute,
}

// Normalize lowercases and trims a raw role name.
func Normalize(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether r is in the priority order.
func Known(r Role) bool {
	return Rank(r) > 0
}

// PriorityOrder returns a copy of the known roles, highest priority first.
func PriorityOrder() []Role {
	out := make([]Role, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

// ResolveEffectiveRole returns the highest-priority known role among the
// active memberships, or Fallback when none is held. Order, duplicates, case
// and unknown role names do not affect the result.
func ResolveEffectiveRole(memberships []models.RoleMembership) Role {
	names := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.Status == models.RoleMembershipStatusRevoked {
			continue
		}
		names = append(names, m.Role)
	}
	return ResolveFromNames(names)
}

// ResolveFromNames is ResolveEffectiveRole over bare role names.
func ResolveFromNames(names []string) Role {
	held := make(map[Role]struct{}, len(names))
	for _, n := range names {
		held[Normalize(n)] = struct{}{}
	}
	for _, r := range priorityOrder {
		if _, ok := held[r]; ok {
			return r
		}
	}
	return Fallback
}

// RouteForRole maps a role to its dashboard path. Unknown roles get DefaultRoute.
func RouteForRole(r Role) string {
	if route, ok := routes[Normalize(string(r))]; ok {
		return route
	}
	return DefaultRoute
}

// Rank returns the role's position counted from the bottom of the priority
// order (user is 1), or 0 for unknown roles.
func Rank(r Role) int {
	r = Normalize(string(r))
	for i, known := range priorityOrder {
		if known == r {
			return len(priorityOrder) - i
		}
	}
	return 0
}

// AtLeast reports whether r ranks at or above min. An unknown min is
// treated as the fallback role.
func AtLeast(r, min Role) bool {
	need := Rank(min)
	if need == 0 {
		need = Rank(Fallback)
	}
	have := Rank(r)
	if have == 0 {
		have = Rank(Fallback)
	}
	return have >= need
}
