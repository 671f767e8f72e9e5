package roles

import (
	"context"
	"log/slog"

	"skrbl/internal/models"
	"skrbl/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome labels for resolution metrics.
const (
	OutcomeResolved  = "resolved"
	OutcomeAnonymous = "anonymous"
	OutcomeDegraded  = "degraded"
)

// Session yields the authenticated user of the current request. It returns
// nil, nil when the request is anonymous.
type Session interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context) (*models.User, error)

// CurrentUser calls f.
func (f SessionFunc) CurrentUser(ctx context.Context) (*models.User, error) {
	return f(ctx)
}

// MembershipStore lists role rows for a user.
type MembershipStore interface {
	ListByUser(ctx context.Context, userID uint) ([]models.RoleMembership, error)
}

// UserAndRole is the result of GetUserAndRole. User is nil for anonymous requests.
type UserAndRole struct {
	User *models.User `json:"user"`
	Role Role         `json:"role"`
}

// Route is the dashboard path for the resolved role.
func (u UserAndRole) Route() string {
	return RouteForRole(u.Role)
}

// Authenticated reports whether a user was identified.
func (u UserAndRole) Authenticated() bool {
	return u.User != nil
}

// Resolver combines the session with the membership store.
type Resolver struct {
	store  MembershipStore
	logger *slog.Logger
}

// NewResolver returns a Resolver reading memberships from store.
func NewResolver(store MembershipStore) *Resolver {
	return &Resolver{store: store, logger: observability.Logger}
}

// GetUserAndRole identifies the caller and resolves their effective role.
// It never fails: session and store errors are logged and degrade to the
// fallback role so navigation is never blocked. There are no retries.
func (r *Resolver) GetUserAndRole(ctx context.Context, session Session) UserAndRole {
	ctx, span := observability.StartSpan(ctx, "roles.GetUserAndRole")
	defer span.End()

	if session == nil {
		return r.record(UserAndRole{Role: Fallback}, OutcomeAnonymous)
	}

	user, err := session.CurrentUser(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "session lookup failed, treating request as anonymous",
			slog.String("error", err.Error()))
		observability.RecordError(span, err)
		return r.record(UserAndRole{Role: Fallback}, OutcomeAnonymous)
	}
	if user == nil {
		return r.record(UserAndRole{Role: Fallback}, OutcomeAnonymous)
	}
	span.SetAttributes(attribute.Int("user.id", int(user.ID)))

	memberships, err := r.store.ListByUser(ctx, user.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "role membership lookup failed, using fallback role",
			slog.Any("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		observability.RecordError(span, err)
		return r.record(UserAndRole{User: user, Role: Fallback}, OutcomeDegraded)
	}

	role := ResolveEffectiveRole(memberships)
	span.SetAttributes(attribute.String("role", string(role)))
	return r.record(UserAndRole{User: user, Role: role}, OutcomeResolved)
}

func (r *Resolver) record(res UserAndRole, outcome string) UserAndRole {
	observability.RoleResolutions.WithLabelValues(string(res.Role), outcome).Inc()
	return res
}
