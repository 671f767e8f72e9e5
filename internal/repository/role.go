package repository

import (
	"context"
	"strings"
	"time"

	"skrbl/internal/cache"
	"skrbl/internal/models"
	"skrbl/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository persists role memberships. Role names are stored lowercased.
type RoleRepository interface {
	// ListByUser returns every membership row for the user, revoked ones included.
	ListByUser(ctx context.Context, userID uint) ([]models.RoleMembership, error)
	// Grant creates the membership or reactivates a revoked one.
	Grant(ctx context.Context, userID uint, role, source string, grantedBy *uint) (*models.RoleMembership, error)
	// Revoke marks the membership revoked.
	Revoke(ctx context.Context, userID uint, role string) error
}

type roleRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewRoleRepository returns a gorm-backed RoleRepository with a Redis read cache.
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db, log: observability.NewRepoLogger("user_roles")}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func (r *roleRepository) ListByUser(ctx context.Context, userID uint) ([]models.RoleMembership, error) {
	var memberships []models.RoleMembership
	err := cache.Aside(ctx, cache.RolesKey(userID), &memberships, cache.RolesTTL, func() error {
		if err := r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("id ASC").
			Find(&memberships).Error; err != nil {
			r.log.LogError(ctx, err, "list_by_user")
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *roleRepository) Grant(ctx context.Context, userID uint, role, source string, grantedBy *uint) (*models.RoleMembership, error) {
	role = normalizeRole(role)
	if role == "" {
		return nil, models.NewValidationError("role is required")
	}

	m := &models.RoleMembership{
		UserID:    userID,
		Role:      role,
		Status:    models.RoleMembershipStatusActive,
		Source:    source,
		GrantedBy: grantedBy,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "role"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     models.RoleMembershipStatusActive,
			"source":     source,
			"granted_by": grantedBy,
			"updated_at": time.Now(),
		}),
	}).Create(m).Error
	if err != nil {
		r.log.LogError(ctx, err, "grant")
		return nil, models.NewInternalError(err)
	}

	// The upsert does not reliably return the existing row's id, so re-read it.
	var stored models.RoleMembership
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		First(&stored).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	cache.InvalidateRoles(ctx, userID)
	r.log.LogWrite(ctx, "grant", map[string]any{"user_id": userID, "role": role, "source": source})
	return &stored, nil
}

func (r *roleRepository) Revoke(ctx context.Context, userID uint, role string) error {
	role = normalizeRole(role)

	res := r.db.WithContext(ctx).
		Model(&models.RoleMembership{}).
		Where("user_id = ? AND role = ?", userID, role).
		Updates(map[string]any{
			"status":     models.RoleMembershipStatusRevoked,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "revoke")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Role membership", role)
	}

	cache.InvalidateRoles(ctx, userID)
	r.log.LogWrite(ctx, "revoke", map[string]any{"user_id": userID, "role": role})
	return nil
}
