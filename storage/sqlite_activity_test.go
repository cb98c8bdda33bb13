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

func setupActivityStorage(t *testing.T) *SQLiteActivityStorage {
	sqlite := setupTestSQLite(t)
	store, err := NewSQLiteActivityStorage(sqlite, zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to create activity storage")
	return store
}

func newTestActivity(caseID, userID, message string) *core.ActivityEntry {
	return &core.ActivityEntry{
		ID:      uuid.NewString(),
		CaseID:  caseID,
		UserID:  userID,
		Message: message,
	}
}

func TestActivityStorage_AppendAndList(t *testing.T) {
	store := setupActivityStorage(t)
	ctx := context.Background()
	caseID := uuid.NewString()

	for i := 0; i < 3; i++ {
		entry := newTestActivity(caseID, "user-1", fmt.Sprintf(`added ioc "10.0.0.%d"`, i))
		entry.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.AppendActivity(ctx, entry))
	}

	filters := &core.ActivityFilters{}
	filters.Normalize()
	entries, total, err := store.ListActivitiesByCase(ctx, caseID, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 3)
	assert.Equal(t, `added ioc "10.0.0.2"`, entries[0].Message, "Newest entries come first by default")
}

func TestActivityStorage_ListScopedToCase(t *testing.T) {
	store := setupActivityStorage(t)
	ctx := context.Background()

	caseA := uuid.NewString()
	caseB := uuid.NewString()
	require.NoError(t, store.AppendActivity(ctx, newTestActivity(caseA, "user-1", "created case")))
	require.NoError(t, store.AppendActivity(ctx, newTestActivity(caseB, "user-1", "created case")))

	filters := &core.ActivityFilters{}
	filters.Normalize()
	entries, total, err := store.ListActivitiesByCase(ctx, caseA, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, caseA, entries[0].CaseID)
}

func TestActivityStorage_ListFilters(t *testing.T) {
	store := setupActivityStorage(t)
	ctx := context.Background()
	caseID := uuid.NewString()

	old := newTestActivity(caseID, "user-1", "created case")
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.AppendActivity(ctx, old))

	recent := newTestActivity(caseID, "user-2", `added task "triage"`)
	require.NoError(t, store.AppendActivity(ctx, recent))

	filters := &core.ActivityFilters{UserID: "user-2"}
	filters.Normalize()
	entries, total, err := store.ListActivitiesByCase(ctx, caseID, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-2", entries[0].UserID)

	since := time.Now().UTC().Add(-time.Hour)
	filters = &core.ActivityFilters{Since: &since}
	filters.Normalize()
	_, total, err = store.ListActivitiesByCase(ctx, caseID, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "Since filter should exclude older entries")

	until := time.Now().UTC().Add(-time.Hour)
	filters = &core.ActivityFilters{Until: &until}
	filters.Normalize()
	_, total, err = store.ListActivitiesByCase(ctx, caseID, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "Until filter should exclude newer entries")
}

func TestActivityStorage_Pagination(t *testing.T) {
	store := setupActivityStorage(t)
	ctx := context.Background()
	caseID := uuid.NewString()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		entry := newTestActivity(caseID, "user-1", fmt.Sprintf("step %d", i))
		entry.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.AppendActivity(ctx, entry))
	}

	filters := &core.ActivityFilters{}
	filters.Page = 2
	filters.PerPage = 2
	filters.SortBy = "created_at"
	filters.SortDir = "asc"
	filters.Normalize()

	entries, total, err := store.ListActivitiesByCase(ctx, caseID, filters)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "step 2", entries[0].Message)
}
