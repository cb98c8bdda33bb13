package access

import (
	"context"

	"casetrack/core"
	"casetrack/metrics"

	"go.uber.org/zap"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed        bool
	EffectiveLevel core.AccessLevel
	AdminOverride  bool
}

// Controller answers authorization questions by combining global permissions
// with per-case access grants. It never returns errors to callers: any
// failure to resolve a grant denies the request.
type Controller struct {
	grants core.GrantStorage
	logger *zap.SugaredLogger
}

// NewController creates an authorization controller.
func NewController(grants core.GrantStorage, logger *zap.SugaredLogger) *Controller {
	return &Controller{grants: grants, logger: logger}
}

// HasPermission checks a global permission flag on the user.
func (c *Controller) HasPermission(user *core.User, perm core.Permission) bool {
	if user == nil {
		return false
	}
	return user.HasPermission(perm)
}

// Authorize decides whether the user may act on the case at any of the
// required levels. Server administrators pass unconditionally. For everyone
// else the effective level (highest of direct and group grants) must satisfy
// the requirement; an empty requirement set denies.
func (c *Controller) Authorize(ctx context.Context, user *core.User, caseID string, required ...core.AccessLevel) Decision {
	if user == nil {
		metrics.AccessDenials.WithLabelValues("no_user").Inc()
		return Decision{}
	}
	if user.IsServerAdministrator() {
		return Decision{Allowed: true, EffectiveLevel: core.AccessLevelFullAccess, AdminOverride: true}
	}

	level, err := c.grants.EffectiveAccessLevel(ctx, user.ID, caseID)
	if err != nil {
		// Fail closed: an unresolvable grant is treated as no grant.
		c.logger.Errorw("Failed to resolve access level, denying",
			"user_id", user.ID, "case_id", caseID, "error", err)
		metrics.AccessDenials.WithLabelValues("storage_error").Inc()
		return Decision{}
	}

	if !level.Satisfies(required) {
		metrics.AccessDenials.WithLabelValues("insufficient_level").Inc()
		return Decision{EffectiveLevel: level}
	}
	return Decision{Allowed: true, EffectiveLevel: level}
}

// NewChecker returns a request-scoped decision cache over this controller.
func (c *Controller) NewChecker(user *core.User) *Checker {
	return &Checker{controller: c, user: user, levels: make(map[string]core.AccessLevel)}
}
