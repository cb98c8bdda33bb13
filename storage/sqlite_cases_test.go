package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"casetrack/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCaseStorage(t *testing.T) *SQLiteCaseStorage {
	sqlite := setupTestSQLite(t)
	store, err := NewSQLiteCaseStorage(sqlite, zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to create case storage")
	return store
}

func newTestCase(name string) *core.Case {
	now := time.Now().UTC()
	return &core.Case{
		ID:        uuid.NewString(),
		UUID:      uuid.NewString(),
		Name:      name,
		Status:    core.CaseStatusOpen,
		CreatedBy: "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCaseStorage_CreateAndGet(t *testing.T) {
	store := setupCaseStorage(t)
	ctx := context.Background()

	c := newTestCase("Phishing wave March")
	c.Description = "Credential phishing against finance"
	c.Classification = "phishing"
	c.SocID = "SOC-0042"

	require.NoError(t, store.CreateCase(ctx, c))

	got, err := store.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Description, got.Description)
	assert.Equal(t, c.Classification, got.Classification)
	assert.Equal(t, c.SocID, got.SocID)
	assert.Equal(t, core.CaseStatusOpen, got.Status)
	assert.Equal(t, "user-1", got.CreatedBy)
	assert.Nil(t, got.ClosedAt, "Open case should have no closed_at")
}

func TestCaseStorage_GetNotFound(t *testing.T) {
	store := setupCaseStorage(t)

	_, err := store.GetCase(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestCaseStorage_Update(t *testing.T) {
	store := setupCaseStorage(t)
	ctx := context.Background()

	c := newTestCase("Initial name")
	require.NoError(t, store.CreateCase(ctx, c))

	c.Name = "Renamed investigation"
	closed := time.Now().UTC()
	c.Status = core.CaseStatusClosed
	c.ClosedAt = &closed
	require.NoError(t, store.UpdateCase(ctx, c))

	got, err := store.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed investigation", got.Name)
	assert.Equal(t, core.CaseStatusClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
	assert.WithinDuration(t, closed, *got.ClosedAt, time.Second)
}

func TestCaseStorage_UpdateNotFound(t *testing.T) {
	store := setupCaseStorage(t)

	c := newTestCase("Ghost")
	err := store.UpdateCase(context.Background(), c)
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestCaseStorage_Delete(t *testing.T) {
	store := setupCaseStorage(t)
	ctx := context.Background()

	c := newTestCase("Short lived")
	require.NoError(t, store.CreateCase(ctx, c))
	require.NoError(t, store.DeleteCase(ctx, c.ID))

	_, err := store.GetCase(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCaseNotFound)

	err = store.DeleteCase(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCaseNotFound, "Double delete should report not found")
}

func TestCaseStorage_CaseExists(t *testing.T) {
	store := setupCaseStorage(t)
	ctx := context.Background()

	c := newTestCase("Exists check")
	require.NoError(t, store.CreateCase(ctx, c))

	exists, err := store.CaseExists(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.CaseExists(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCaseStorage_ListFilters(t *testing.T) {
	store := setupCaseStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c := newTestCase(fmt.Sprintf("Malware case %d", i))
		c.Classification = "malware"
		require.NoError(t, store.CreateCase(ctx, c))
	}
	other := newTestCase("Insider threat review")
	other.Classification = "insider"
	other.Status = core.CaseStatusClosed
	require.NoError(t, store.CreateCase(ctx, other))

	filters := &core.CaseFilters{Classification: "malware"}
	filters.Normalize()
	cases, total, err := store.ListCases(ctx, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, cases, 3)

	filters = &core.CaseFilters{Name: "insider"}
	filters.Normalize()
	cases, total, err = store.ListCases(ctx, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "Name filter should match substrings")
	require.Len(t, cases, 1)
	assert.Equal(t, other.ID, cases[0].ID)

	filters = &core.CaseFilters{Status: core.CaseStatusClosed}
	filters.Normalize()
	_, total, err = store.ListCases(ctx, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCaseStorage_ListPagination(t *testing.T) {
	store := setupCaseStorage(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		c := newTestCase(fmt.Sprintf("Case %02d", i))
		require.NoError(t, store.CreateCase(ctx, c))
	}

	filters := &core.CaseFilters{}
	filters.Page = 2
	filters.PerPage = 3
	filters.SortBy = "name"
	filters.Normalize()

	cases, total, err := store.ListCases(ctx, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total, "Total should count all matches, not the window")
	require.Len(t, cases, 3)
	assert.Equal(t, "Case 03", cases[0].Name)
}

func TestCaseStorage_ListRejectsUnknownSortField(t *testing.T) {
	store := setupCaseStorage(t)

	filters := &core.CaseFilters{}
	filters.SortBy = "name; DROP TABLE cases"
	filters.Normalize()

	_, _, err := store.ListCases(context.Background(), filters)
	assert.Error(t, err, "Sort fields outside the allowlist should be rejected")
}

func TestCaseStorage_ListVisibleToUser(t *testing.T) {
	sqlite := setupTestSQLite(t)
	logger := zap.NewNop().Sugar()
	store, err := NewSQLiteCaseStorage(sqlite, logger)
	require.NoError(t, err)
	grants, err := NewSQLiteGrantStorage(sqlite, logger)
	require.NoError(t, err)
	ctx := context.Background()

	direct := newTestCase("Direct grant case")
	viaGroup := newTestCase("Group grant case")
	hidden := newTestCase("Hidden case")
	for _, c := range []*core.Case{direct, viaGroup, hidden} {
		require.NoError(t, store.CreateCase(ctx, c))
	}

	userID := uuid.NewString()
	require.NoError(t, grants.UpsertGrant(ctx, newTestGrant(core.SubjectUser, userID, direct.ID, core.AccessLevelReadOnly)))

	group := &core.Group{ID: uuid.NewString(), Name: "responders", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, grants.CreateGroup(ctx, group))
	require.NoError(t, grants.AddGroupMember(ctx, group.ID, userID))
	require.NoError(t, grants.UpsertGrant(ctx, newTestGrant(core.SubjectGroup, group.ID, viaGroup.ID, core.AccessLevelFullAccess)))

	filters := &core.CaseFilters{VisibleToUserID: userID}
	filters.SortBy = "name"
	filters.Normalize()

	cases, total, err := store.ListCases(ctx, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "Only granted cases should be visible")
	require.Len(t, cases, 2)
	assert.Equal(t, "Direct grant case", cases[0].Name)
	assert.Equal(t, "Group grant case", cases[1].Name)
}
