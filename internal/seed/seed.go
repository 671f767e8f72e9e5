package seed

import (
	"fmt"
	"log/slog"

	"skrbl/internal/models"
	"skrbl/internal/observability"
	"skrbl/internal/roles"

	"gorm.io/gorm"
)

// DemoAccount is a fixed login created on every seed run, one per role.
type DemoAccount struct {
	Username string
	Email    string
	Role     roles.Role
	Admin    bool
}

// DemoAccounts lists the fixed logins, highest role first.
var DemoAccounts = []DemoAccount{
	{Username: "founder", Email: "founder@skrbl.local", Role: roles.Founder, Admin: true},
	{Username: "heir", Email: "heir@skrbl.local", Role: roles.Heir},
	{Username: "vip", Email: "vip@skrbl.local", Role: roles.VIP},
	{Username: "parent", Email: "parent@skrbl.local", Role: roles.Parent},
	{Username: "member", Email: "member@skrbl.local", Role: roles.User},
}

// Result summarizes a seed run.
type Result struct {
	Users       []*models.User
	Memberships int
}

// Seed populates the database with demo accounts plus opts.NumUsers random
// users holding random role memberships.
func Seed(db *gorm.DB, opts Options) (*Result, error) {
	log := observability.Logger
	log.Info("seeding database", slog.Int("users", opts.NumUsers), slog.Bool("clean", opts.ShouldClean))

	if opts.ShouldClean && !opts.DryRun {
		if err := ClearAll(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, opts)
	res := &Result{}

	for _, acct := range DemoAccounts {
		acct := acct
		u, err := f.CreateUser(func(u *models.User) {
			u.Username = acct.Username
			u.Email = acct.Email
			u.IsAdmin = acct.Admin
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create demo user %s: %w", acct.Username, err)
		}
		res.Users = append(res.Users, u)

		// user is implicit; no membership row needed.
		if acct.Role == roles.User {
			continue
		}
		if _, err := f.GrantRole(u, acct.Role); err != nil {
			return nil, fmt.Errorf("failed to grant %s to %s: %w", acct.Role, acct.Username, err)
		}
		res.Memberships++
	}

	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		res.Users = append(res.Users, u)

		for _, r := range f.RandomRoles() {
			if _, err := f.GrantRole(u, r); err != nil {
				return nil, fmt.Errorf("failed to grant %s: %w", r, err)
			}
			res.Memberships++
		}
	}

	log.Info("seeding finished", slog.Int("users", len(res.Users)), slog.Int("memberships", res.Memberships))
	return res, nil
}

// ClearAll removes every seeded row, children first.
func ClearAll(db *gorm.DB) error {
	for _, model := range []any{&models.Subscription{}, &models.RoleMembership{}, &models.User{}} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
