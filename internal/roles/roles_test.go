package roles

import (
	"math/rand"
	"testing"

	"skrbl/internal/models"

	"github.com/stretchr/testify/assert"
)

func memberships(names ...string) []models.RoleMembership {
	out := make([]models.RoleMembership, 0, len(names))
	for _, n := range names {
		out = append(out, models.RoleMembership{Role: n, Status: models.RoleMembershipStatusActive})
	}
	return out
}

func TestResolveEffectiveRole(t *testing.T) {
	tests := []struct {
		name  string
		input []models.RoleMembership
		want  Role
	}{
		{"mixed case vip and user", memberships("VIP", "user"), VIP},
		{"empty", nil, User},
		{"only unknown roles", memberships("admin", "superuser"), User},
		{"founder beats everything", memberships("parent", "vip", "Founder", "heir"), Founder},
		{"heir beats vip", memberships("vip", "heir"), Heir},
		{"parent beats user", memberships("user", "PARENT"), Parent},
		{"duplicates", memberships("vip", "vip", "VIP"), VIP},
		{"surrounding whitespace", memberships("  founder  "), Founder},
		{"unknown mixed with known", memberships("ceo", "parent"), Parent},
		{"empty strings ignored", memberships("", " "), User},
		{
			name: "revoked memberships are not held",
			input: []models.RoleMembership{
				{Role: "founder", Status: models.RoleMembershipStatusRevoked},
				{Role: "parent", Status: models.RoleMembershipStatusActive},
			},
			want: Parent,
		},
		{
			name:  "missing status counts as active",
			input: []models.RoleMembership{{Role: "vip"}},
			want:  VIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveEffectiveRole(tt.input))
		})
	}
}

func TestResolveEffectiveRole_OrderIndependent(t *testing.T) {
	base := []string{"user", "parent", "vip", "heir", "founder", "guest"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := rng.Intn(len(base) + 1)
		picked := make([]string, 0, n*2)
		for j := 0; j < n; j++ {
			picked = append(picked, base[rng.Intn(len(base))])
		}
		picked = append(picked, picked...)

		want := ResolveFromNames(picked)
		rng.Shuffle(len(picked), func(a, b int) { picked[a], picked[b] = picked[b], picked[a] })
		assert.Equal(t, want, ResolveFromNames(picked), "input %v", picked)

		// The result is always the highest-ranked known role present.
		best := Fallback
		for _, p := range picked {
			if Rank(Role(p)) > Rank(best) {
				best = Role(p)
			}
		}
		assert.Equal(t, best, want)
	}
}

func TestRouteForRole(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{Founder, "/dashboard/founder"},
		{Heir, "/dashboard/heir"},
		{VIP, "/dashboard/vip"},
		{Parent, "/dashboard/parent"},
		{User, "/dashboard"},
		{Role("VIP"), "/dashboard/vip"},
		{Role("admin"), "/dashboard"},
		{Role(""), "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, RouteForRole(tt.role))
		})
	}
}

func TestScenarioRoutes(t *testing.T) {
	role := ResolveEffectiveRole(memberships("VIP", "user"))
	assert.Equal(t, VIP, role)
	assert.Equal(t, "/dashboard/vip", RouteForRole(role))

	role = ResolveEffectiveRole(nil)
	assert.Equal(t, User, role)
	assert.Equal(t, "/dashboard", RouteForRole(role))
}

func TestRankAndAtLeast(t *testing.T) {
	assert.Equal(t, 5, Rank(Founder))
	assert.Equal(t, 1, Rank(User))
	assert.Equal(t, 0, Rank("ghost"))
	assert.True(t, Known(Heir))
	assert.False(t, Known("ghost"))

	assert.True(t, AtLeast(Founder, VIP))
	assert.True(t, AtLeast(VIP, VIP))
	assert.False(t, AtLeast(Parent, VIP))
	assert.True(t, AtLeast(User, "ghost"))
	assert.False(t, AtLeast("ghost", Parent))
	assert.True(t, AtLeast("ghost", User))
}

func TestPriorityOrderIsCopy(t *testing.T) {
	order := PriorityOrder()
	order[0] = "mutated"
	assert.Equal(t, Founder, PriorityOrder()[0])
}
