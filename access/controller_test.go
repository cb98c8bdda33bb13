package access

import (
	"context"
	"errors"
	"testing"

	"casetrack/core"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeGrantStorage serves canned effective levels keyed by user then case.
type fakeGrantStorage struct {
	core.GrantStorage

	levels map[string]map[string]core.AccessLevel
	err    error
	calls  int
}

func (f *fakeGrantStorage) EffectiveAccessLevel(ctx context.Context, userID, caseID string) (core.AccessLevel, error) {
	f.calls++
	if f.err != nil {
		return core.AccessLevelNone, f.err
	}
	return f.levels[userID][caseID], nil
}

func newTestController(levels map[string]map[string]core.AccessLevel) (*Controller, *fakeGrantStorage) {
	store := &fakeGrantStorage{levels: levels}
	return NewController(store, zap.NewNop().Sugar()), store
}

func standardUser(id string) *core.User {
	return &core.User{ID: id, Username: id, Permissions: []core.Permission{core.PermStandardUser}, Active: true}
}

func adminUser(id string) *core.User {
	return &core.User{ID: id, Username: id, Permissions: []core.Permission{core.PermServerAdministrator}, Active: true}
}

func TestController_DenyWithoutGrant(t *testing.T) {
	ctrl, _ := newTestController(nil)
	user := standardUser("user-1")

	d := ctrl.Authorize(context.Background(), user, "case-1", core.AccessLevelReadOnly, core.AccessLevelFullAccess)
	assert.False(t, d.Allowed, "Users without any grant must be denied")
	assert.Equal(t, core.AccessLevelNone, d.EffectiveLevel)
}

func TestController_FullAccessSatisfiesReadRequirement(t *testing.T) {
	ctrl, _ := newTestController(map[string]map[string]core.AccessLevel{
		"user-1": {"case-1": core.AccessLevelFullAccess},
	})
	user := standardUser("user-1")

	d := ctrl.Authorize(context.Background(), user, "case-1", core.AccessLevelReadOnly, core.AccessLevelFullAccess)
	assert.True(t, d.Allowed, "full_access should satisfy any requirement containing read_only")
	assert.Equal(t, core.AccessLevelFullAccess, d.EffectiveLevel)
}

func TestController_ReadOnlyDeniedForWriteRequirement(t *testing.T) {
	ctrl, _ := newTestController(map[string]map[string]core.AccessLevel{
		"user-1": {"case-1": core.AccessLevelReadOnly},
	})
	user := standardUser("user-1")

	d := ctrl.Authorize(context.Background(), user, "case-1", core.AccessLevelFullAccess)
	assert.False(t, d.Allowed)
	assert.Equal(t, core.AccessLevelReadOnly, d.EffectiveLevel)
}

func TestController_EmptyRequirementDenies(t *testing.T) {
	ctrl, _ := newTestController(map[string]map[string]core.AccessLevel{
		"user-1": {"case-1": core.AccessLevelFullAccess},
	})

	d := ctrl.Authorize(context.Background(), standardUser("user-1"), "case-1")
	assert.False(t, d.Allowed, "An empty requirement set is never satisfied")
}

func TestController_AdminOverride(t *testing.T) {
	ctrl, store := newTestController(nil)

	d := ctrl.Authorize(context.Background(), adminUser("root"), "case-1", core.AccessLevelFullAccess)
	assert.True(t, d.Allowed, "server_administrator passes without a grant")
	assert.True(t, d.AdminOverride)
	assert.Zero(t, store.calls, "Admin override should not consult grant storage")
}

func TestController_FailClosedOnStorageError(t *testing.T) {
	ctrl, store := newTestController(nil)
	store.err = errors.New("database is locked")

	d := ctrl.Authorize(context.Background(), standardUser("user-1"), "case-1", core.AccessLevelReadOnly)
	assert.False(t, d.Allowed, "Storage failures must deny, never allow")
}

func TestController_NilUserDenied(t *testing.T) {
	ctrl, _ := newTestController(nil)

	d := ctrl.Authorize(context.Background(), nil, "case-1", core.AccessLevelReadOnly)
	assert.False(t, d.Allowed)
	assert.False(t, ctrl.HasPermission(nil, core.PermStandardUser))
}

func TestController_HasPermission(t *testing.T) {
	ctrl, _ := newTestController(nil)

	assert.True(t, ctrl.HasPermission(standardUser("u"), core.PermStandardUser))
	assert.False(t, ctrl.HasPermission(standardUser("u"), core.PermServerAdministrator))
	assert.True(t, ctrl.HasPermission(adminUser("a"), core.PermServerAdministrator))
}

func TestChecker_CachesEffectiveLevel(t *testing.T) {
	ctrl, store := newTestController(map[string]map[string]core.AccessLevel{
		"user-1": {"case-1": core.AccessLevelFullAccess},
	})
	checker := ctrl.NewChecker(standardUser("user-1"))
	ctx := context.Background()

	d := checker.Authorize(ctx, "case-1", core.AccessLevelReadOnly, core.AccessLevelFullAccess)
	assert.True(t, d.Allowed)
	d = checker.Authorize(ctx, "case-1", core.AccessLevelFullAccess)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, store.calls, "The level should be resolved once per case per request")
}

func TestChecker_CacheDoesNotLeakAcrossCheckers(t *testing.T) {
	levels := map[string]map[string]core.AccessLevel{
		"user-1": {"case-1": core.AccessLevelFullAccess},
	}
	ctrl, store := newTestController(levels)
	ctx := context.Background()

	first := ctrl.NewChecker(standardUser("user-1"))
	assert.True(t, first.Authorize(ctx, "case-1", core.AccessLevelFullAccess).Allowed)

	// Grant revoked between requests; a fresh checker sees the new state.
	levels["user-1"]["case-1"] = core.AccessLevelNone
	second := ctrl.NewChecker(standardUser("user-1"))
	assert.False(t, second.Authorize(ctx, "case-1", core.AccessLevelFullAccess).Allowed)
	assert.Equal(t, 2, store.calls)
}

func TestChecker_StorageErrorNotCached(t *testing.T) {
	ctrl, store := newTestController(map[string]map[string]core.AccessLevel{
		"user-1": {"case-1": core.AccessLevelFullAccess},
	})
	checker := ctrl.NewChecker(standardUser("user-1"))
	ctx := context.Background()

	store.err = errors.New("connection reset")
	assert.False(t, checker.Authorize(ctx, "case-1", core.AccessLevelReadOnly).Allowed)

	store.err = nil
	assert.True(t, checker.Authorize(ctx, "case-1", core.AccessLevelReadOnly).Allowed,
		"A failed resolution must not poison the cache")
}

func TestChecker_AdminBypassesCache(t *testing.T) {
	ctrl, store := newTestController(nil)
	checker := ctrl.NewChecker(adminUser("root"))

	d := checker.Authorize(context.Background(), "any-case", core.AccessLevelFullAccess)
	assert.True(t, d.Allowed)
	assert.True(t, d.AdminOverride)
	assert.Zero(t, store.calls)
}
