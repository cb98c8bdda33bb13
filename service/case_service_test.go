package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"casetrack/core"
	"casetrack/hooks"
	"casetrack/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCaseService(t *testing.T) (*CaseService, *MockCaseStorage, *hooks.Dispatcher, *recordingTracker) {
	cases := &MockCaseStorage{}
	dispatcher := newTestHooks(t)
	tracker := &recordingTracker{}
	svc := NewCaseService(cases, dispatcher, tracker, zap.NewNop().Sugar())
	return svc, cases, dispatcher, tracker
}

func TestCaseService_CreateSuccessAuditsOnce(t *testing.T) {
	svc, cases, _, tracker := newCaseService(t)
	cases.On("CreateCase", mock.Anything, mock.AnythingOfType("*core.Case")).Return(nil)

	c, err := svc.Create(context.Background(), testActor(), &core.CaseCreateRequest{Name: "Phishing wave"})
	require.NoError(t, err)
	assert.Equal(t, "Phishing wave", c.Name)
	assert.Equal(t, core.CaseStatusOpen, c.Status)
	assert.Equal(t, "user-1", c.CreatedBy)
	assert.NotEmpty(t, c.ID)

	require.Len(t, tracker.records, 1, "Exactly one audit entry per successful mutation")
	assert.Equal(t, `created case "Phishing wave"`, tracker.records[0])
	assert.Equal(t, c.ID, tracker.cases[0])
}

func TestCaseService_CreateValidationFailureTouchesNothing(t *testing.T) {
	svc, cases, _, tracker := newCaseService(t)

	_, err := svc.Create(context.Background(), testActor(), &core.CaseCreateRequest{Name: ""})
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "name", "The failing field must be named")

	cases.AssertNotCalled(t, "CreateCase", mock.Anything, mock.Anything)
	assert.Empty(t, tracker.records, "Failed operations leave no audit trail")
}

func TestCaseService_CreatePreHookAbortPersistsNothing(t *testing.T) {
	svc, cases, dispatcher, tracker := newCaseService(t)
	dispatcher.RegisterPre(hooks.EntityCase, hooks.EventCreate, 10, "policy-gate",
		func(ctx context.Context, hctx hooks.Context, payload any) (any, error) {
			return nil, errors.New("classification not allowed")
		})

	_, err := svc.Create(context.Background(), testActor(), &core.CaseCreateRequest{Name: "Blocked"})
	require.Error(t, err)

	var berr *core.BusinessProcessingError
	require.ErrorAs(t, err, &berr)
	assert.Contains(t, berr.Message, "classification not allowed")

	cases.AssertNotCalled(t, "CreateCase", mock.Anything, mock.Anything)
	assert.Empty(t, tracker.records)
}

func TestCaseService_CreatePreHookTransformsPayload(t *testing.T) {
	svc, cases, dispatcher, _ := newCaseService(t)
	dispatcher.RegisterPre(hooks.EntityCase, hooks.EventCreate, 10, "normalize-name",
		func(ctx context.Context, hctx hooks.Context, payload any) (any, error) {
			req := payload.(*core.CaseCreateRequest)
			req.Name = strings.TrimSpace(req.Name)
			return req, nil
		})
	cases.On("CreateCase", mock.Anything, mock.AnythingOfType("*core.Case")).Return(nil)

	c, err := svc.Create(context.Background(), testActor(), &core.CaseCreateRequest{Name: "  Padded  "})
	require.NoError(t, err)
	assert.Equal(t, "Padded", c.Name, "The persisted entity reflects the hook's transformation")
}

func TestCaseService_CreatePostHookFailureKeepsMutation(t *testing.T) {
	svc, cases, dispatcher, tracker := newCaseService(t)
	dispatcher.RegisterPost(hooks.EntityCase, hooks.EventCreate, 10, "flaky-notifier",
		func(ctx context.Context, hctx hooks.Context, entity any) error {
			return errors.New("notification endpoint down")
		})
	cases.On("CreateCase", mock.Anything, mock.AnythingOfType("*core.Case")).Return(nil)

	c, err := svc.Create(context.Background(), testActor(), &core.CaseCreateRequest{Name: "Kept"})
	require.NoError(t, err, "Post-hook failures never fail the committed operation")
	assert.NotNil(t, c)
	assert.Len(t, tracker.records, 1)
}

func TestCaseService_GetNotFound(t *testing.T) {
	svc, cases, _, _ := newCaseService(t)
	cases.On("GetCase", mock.Anything, "missing").Return(nil, storage.ErrCaseNotFound)

	_, err := svc.Get(context.Background(), "missing")
	var nfe *core.ObjectNotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "case", nfe.Entity)
	assert.Equal(t, "missing", nfe.ID)
}

func TestCaseService_UpdateMergesPointerFields(t *testing.T) {
	svc, cases, _, tracker := newCaseService(t)
	existing := &core.Case{ID: "case-1", Name: "Old name", Description: "Keep me", Status: core.CaseStatusOpen}
	cases.On("GetCase", mock.Anything, "case-1").Return(existing, nil)
	cases.On("UpdateCase", mock.Anything, mock.AnythingOfType("*core.Case")).Return(nil)

	newName := "New name"
	updated, err := svc.Update(context.Background(), testActor(), "case-1", &core.CaseUpdateRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "New name", updated.Name)
	assert.Equal(t, "Keep me", updated.Description, "Nil fields impose no change")
	assert.Equal(t, []string{`updated case "New name"`}, tracker.records)
}

func TestCaseService_DeleteAudits(t *testing.T) {
	svc, cases, _, tracker := newCaseService(t)
	existing := &core.Case{ID: "case-1", Name: "Done with"}
	cases.On("GetCase", mock.Anything, "case-1").Return(existing, nil)
	cases.On("DeleteCase", mock.Anything, "case-1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), testActor(), "case-1"))
	assert.Equal(t, []string{`deleted case "Done with"`}, tracker.records)
}

func TestCaseService_ListStorageFailureIsGeneric(t *testing.T) {
	svc, cases, _, _ := newCaseService(t)
	cases.On("ListCases", mock.Anything, mock.Anything).Return(nil, int64(0), errors.New("disk I/O error"))

	filters := &core.CaseFilters{}
	_, err := svc.List(context.Background(), filters)
	var berr *core.BusinessProcessingError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "filtering error", berr.Message)
	assert.NotContains(t, berr.Message, "disk", "Internal details must not leak")
}

func TestCaseService_ListBuildsPage(t *testing.T) {
	svc, cases, _, _ := newCaseService(t)
	items := []*core.Case{{ID: "a"}, {ID: "b"}}
	cases.On("ListCases", mock.Anything, mock.Anything).Return(items, int64(12), nil)

	filters := &core.CaseFilters{}
	filters.Page = 2
	filters.PerPage = 2
	page, err := svc.List(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 6, page.LastPage)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 3, *page.NextPage)
}

func TestCaseService_CloseAndReopen(t *testing.T) {
	svc, cases, _, tracker := newCaseService(t)
	c := &core.Case{ID: "case-1", Name: "Lifecycle", Status: core.CaseStatusOpen}
	cases.On("GetCase", mock.Anything, "case-1").Return(c, nil)
	cases.On("UpdateCase", mock.Anything, mock.AnythingOfType("*core.Case")).Return(nil)

	closed, err := svc.Close(context.Background(), testActor(), "case-1")
	require.NoError(t, err)
	assert.Equal(t, core.CaseStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = svc.Close(context.Background(), testActor(), "case-1")
	var berr *core.BusinessProcessingError
	require.ErrorAs(t, err, &berr, "Closing a closed case is a business error")

	reopened, err := svc.Reopen(context.Background(), testActor(), "case-1")
	require.NoError(t, err)
	assert.Equal(t, core.CaseStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)

	assert.Equal(t, []string{"closed case", "reopened case"}, tracker.records)
}
