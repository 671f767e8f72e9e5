// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"skrbl/internal/models"
	"skrbl/internal/observability"
	"skrbl/internal/roles"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "Skrbl!Demo2024"

// Options configures the seeder.
type Options struct {
	NumUsers    int
	ShouldClean bool
	// DryRun builds entities with synthetic ids and never touches the DB.
	DryRun bool
	// SkipBcrypt stores the plaintext password. Faster, dev only.
	SkipBcrypt bool
	// Seed fixes the random source; zero means time-based.
	Seed int64
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   Options
	rnd    *rand.Rand
	nextID uint
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{db: db, opts: opts, rnd: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) hash(password string) string {
	if f.opts.SkipBcrypt {
		return password
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return password
	}
	return string(hashed)
}

// CreateUser constructs and persists a sample user. Overrides run before the
// insert.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Password: f.hash(DefaultPassword),
	}
	if len(user.Username) > 30 {
		user.Username = user.Username[:30]
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		observability.Logger.Debug("dry-run create user", slog.String("email", user.Email))
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GrantRole gives user an active membership in role.
func (f *Factory) GrantRole(user *models.User, role roles.Role) (*models.RoleMembership, error) {
	m := &models.RoleMembership{
		UserID: user.ID,
		Role:   string(role),
		Status: models.RoleMembershipStatusActive,
		Source: "seed",
	}

	if f.opts.DryRun {
		f.nextID++
		m.ID = f.nextID
		return m, nil
	}

	if err := f.db.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// RandomRoles picks a membership set for a generated user. Most users get
// nothing beyond the implicit user role; a few stack several.
func (f *Factory) RandomRoles() []roles.Role {
	var out []roles.Role
	for _, candidate := range []struct {
		role   roles.Role
		chance float64
	}{
		{roles.Parent, 0.25},
		{roles.VIP, 0.15},
		{roles.Heir, 0.05},
		{roles.Founder, 0.02},
	} {
		if f.rnd.Float64() < candidate.chance {
			out = append(out, candidate.role)
		}
	}
	return out
}
