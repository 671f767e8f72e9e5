// Package bootstrap opens the process-wide runtime dependencies.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"skrbl/internal/cache"
	"skrbl/internal/config"
	"skrbl/internal/database"
	"skrbl/internal/models"
	"skrbl/internal/observability"
	"skrbl/internal/roles"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InitRuntime connects to the database and Redis and, in development,
// ensures the root admin account exists. The Redis client is nil when
// Redis is unreachable.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRootAdmin(context.Background(), cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return db, r, nil
}

// EnsureDevRootAdmin creates or promotes the configured root account to an
// admin holding the founder role. It only acts in development with
// DEV_BOOTSTRAP_ROOT enabled, so a fresh database has someone able to grant
// roles.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "skrbl_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@skrbl.local"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	var rootID uint
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				IsAdmin:  true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			if err := tx.Model(&root).Update("is_admin", true).Error; err != nil {
				return err
			}
		}
		rootID = root.ID

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
			DoUpdates: clause.Assignments(map[string]any{"status": models.RoleMembershipStatusActive}),
		}).Create(&models.RoleMembership{
			UserID: root.ID,
			Role:   string(roles.Founder),
			Status: models.RoleMembershipStatusActive,
			Source: "bootstrap",
		}).Error
	}); err != nil {
		return err
	}

	cache.InvalidateUser(ctx, rootID)
	cache.InvalidateRoles(ctx, rootID)
	observability.Logger.InfoContext(ctx, "development root admin ensured",
		slog.Uint64("user_id", uint64(rootID)), slog.String("email", email))
	return nil
}
