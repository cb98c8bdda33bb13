package access

import (
	"context"

	"casetrack/core"
)

// Checker caches effective access levels for one user over the lifetime of a
// single request. It is installed into the request context by the auth
// middleware and must never be shared across requests: grants changed by a
// concurrent request are picked up on the next request, not this one.
//
// A Checker is used by exactly one goroutine, so the map needs no locking.
type Checker struct {
	controller *Controller
	user       *core.User
	levels     map[string]core.AccessLevel
}

// User returns the user this checker decides for.
func (ch *Checker) User() *core.User {
	return ch.user
}

// Authorize decides like Controller.Authorize but resolves each case's
// effective level at most once per request.
func (ch *Checker) Authorize(ctx context.Context, caseID string, required ...core.AccessLevel) Decision {
	if ch.user == nil {
		return Decision{}
	}
	if ch.user.IsServerAdministrator() {
		return Decision{Allowed: true, EffectiveLevel: core.AccessLevelFullAccess, AdminOverride: true}
	}

	level, ok := ch.levels[caseID]
	if !ok {
		d := ch.controller.Authorize(ctx, ch.user, caseID, core.AccessLevelNone)
		// Authorize with a none requirement always resolves the level; only
		// cache what actually resolved, storage failures must stay denials.
		if !d.Allowed {
			return Decision{}
		}
		level = d.EffectiveLevel
		ch.levels[caseID] = level
	}

	if !level.Satisfies(required) {
		return Decision{EffectiveLevel: level}
	}
	return Decision{Allowed: true, EffectiveLevel: level}
}
