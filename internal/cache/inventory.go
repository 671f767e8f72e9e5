package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	RolesKeyPrefix       = "roles:%d"
	StripeEventKeyPrefix = "stripe_event:%s"
	BlacklistKeyPrefix   = "blacklist:%s"
)

const (
	UserTTL        = 5 * time.Minute
	RolesTTL       = 5 * time.Minute
	StripeEventTTL = 24 * time.Hour
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// RolesKey is the cache key for a user's role membership list.
func RolesKey(userID uint) string {
	return fmt.Sprintf(RolesKeyPrefix, userID)
}

func StripeEventKey(eventID string) string {
	return fmt.Sprintf(StripeEventKeyPrefix, eventID)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateRoles(ctx context.Context, userID uint) {
	Invalidate(ctx, RolesKey(userID))
}
