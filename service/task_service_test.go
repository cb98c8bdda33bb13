package service

import (
	"context"
	"errors"
	"testing"

	"casetrack/core"
	"casetrack/hooks"
	"casetrack/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTaskService(t *testing.T) (*TaskService, *MockTaskStorage, *MockCaseStorage, *hooks.Dispatcher, *recordingTracker) {
	tasks := &MockTaskStorage{}
	cases := &MockCaseStorage{}
	dispatcher := newTestHooks(t)
	tracker := &recordingTracker{}
	svc := NewTaskService(tasks, cases, dispatcher, tracker, zap.NewNop().Sugar())
	return svc, tasks, cases, dispatcher, tracker
}

func TestTaskService_CreateSuccess(t *testing.T) {
	svc, tasks, cases, _, tracker := newTaskService(t)
	cases.On("CaseExists", mock.Anything, "case-1").Return(true, nil)
	tasks.On("CreateTask", mock.Anything, mock.AnythingOfType("*core.Task")).Return(nil)

	task, err := svc.Create(context.Background(), testActor(), "case-1", &core.TaskCreateRequest{Title: "Image the laptop"})
	require.NoError(t, err)
	assert.Equal(t, "case-1", task.CaseID)
	assert.Equal(t, core.TaskStatusTodo, task.Status, "Status defaults to todo")
	assert.Equal(t, []string{`added task "Image the laptop"`}, tracker.records)
}

func TestTaskService_CreateMissingCase(t *testing.T) {
	svc, tasks, cases, _, tracker := newTaskService(t)
	cases.On("CaseExists", mock.Anything, "ghost").Return(false, nil)

	_, err := svc.Create(context.Background(), testActor(), "ghost", &core.TaskCreateRequest{Title: "Orphan"})
	var nfe *core.ObjectNotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "case", nfe.Entity)

	tasks.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	assert.Empty(t, tracker.records)
}

func TestTaskService_CreateValidation(t *testing.T) {
	svc, tasks, _, _, _ := newTaskService(t)

	_, err := svc.Create(context.Background(), testActor(), "case-1", &core.TaskCreateRequest{Title: "", Status: "todo"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "title")
	tasks.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)

	_, err = svc.Create(context.Background(), testActor(), "case-1", &core.TaskCreateRequest{Title: "X", Status: "bogus"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.FieldErrors, "status")
}

func TestTaskService_CreatePreHookAbort(t *testing.T) {
	svc, tasks, _, dispatcher, tracker := newTaskService(t)
	dispatcher.RegisterPre(hooks.EntityTask, hooks.EventCreate, 10, "quota",
		func(ctx context.Context, hctx hooks.Context, payload any) (any, error) {
			return nil, errors.New("task quota exceeded")
		})

	_, err := svc.Create(context.Background(), testActor(), "case-1", &core.TaskCreateRequest{Title: "Over quota"})
	var berr *core.BusinessProcessingError
	require.ErrorAs(t, err, &berr)

	tasks.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	assert.Empty(t, tracker.records, "Aborted operations leave no audit trail")
}

func TestTaskService_GetNotFound(t *testing.T) {
	svc, tasks, _, _, _ := newTaskService(t)
	tasks.On("GetTask", mock.Anything, "missing").Return(nil, storage.ErrTaskNotFound)

	_, err := svc.Get(context.Background(), "missing")
	var nfe *core.ObjectNotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "task", nfe.Entity)
}

func TestTaskService_UpdateKeepsOwningCase(t *testing.T) {
	svc, tasks, _, _, tracker := newTaskService(t)
	existing := &core.Task{ID: "task-1", CaseID: "case-1", Title: "Old", Status: core.TaskStatusTodo}
	tasks.On("GetTask", mock.Anything, "task-1").Return(existing, nil)
	tasks.On("UpdateTask", mock.Anything, mock.AnythingOfType("*core.Task")).Return(nil)

	status := "done"
	updated, err := svc.Update(context.Background(), testActor(), "task-1", &core.TaskUpdateRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusDone, updated.Status)
	assert.Equal(t, "case-1", updated.CaseID)
	assert.Equal(t, "Old", updated.Title, "Nil fields impose no change")
	assert.Equal(t, []string{`updated task "Old"`}, tracker.records)
}

func TestTaskService_DeleteNotFoundAfterHook(t *testing.T) {
	svc, tasks, _, _, _ := newTaskService(t)
	tasks.On("GetTask", mock.Anything, "missing").Return(nil, storage.ErrTaskNotFound)

	err := svc.Delete(context.Background(), testActor(), "missing")
	var nfe *core.ObjectNotFoundError
	require.ErrorAs(t, err, &nfe)
	tasks.AssertNotCalled(t, "DeleteTask", mock.Anything, mock.Anything)
}

func TestTaskService_ListFailure(t *testing.T) {
	svc, tasks, _, _, _ := newTaskService(t)
	tasks.On("ListTasks", mock.Anything, "case-1", mock.Anything).Return(nil, int64(0), errors.New("database is locked"))

	_, err := svc.List(context.Background(), "case-1", &core.TaskFilters{})
	var berr *core.BusinessProcessingError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "filtering error", berr.Message)
}
