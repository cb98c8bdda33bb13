package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casetrack/core"
	"casetrack/hooks"
	"casetrack/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskService implements the business pipeline for tasks. Authorization is
// the caller's duty.
type TaskService struct {
	tasks   core.TaskStorage
	cases   core.CaseStorage
	hooks   HookDispatcher
	tracker ActivityTracker
	logger  *zap.SugaredLogger
}

// NewTaskService creates a task service.
func NewTaskService(tasks core.TaskStorage, cases core.CaseStorage, dispatcher HookDispatcher, tracker ActivityTracker, logger *zap.SugaredLogger) *TaskService {
	return &TaskService{tasks: tasks, cases: cases, hooks: dispatcher, tracker: tracker, logger: logger}
}

// Create adds a task to a case.
func (s *TaskService) Create(ctx context.Context, actor *core.User, caseID string, req *core.TaskCreateRequest) (_ *core.Task, err error) {
	defer observeOperation(hooks.EntityTask, hooks.EventCreate, time.Now(), &err)

	hctx := hooks.Context{Entity: hooks.EntityTask, Event: hooks.EventCreate, CaseID: caseID, ActorID: actor.ID}

	payload, err := s.hooks.DispatchPre(ctx, hctx, req)
	if err != nil {
		return nil, core.NewBusinessError(err.Error())
	}
	req, ok := payload.(*core.TaskCreateRequest)
	if !ok {
		return nil, core.NewBusinessError("hook returned an incompatible payload")
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.cases.CaseExists(ctx, caseID)
	if err != nil {
		return nil, core.WrapUnexpected(err)
	}
	if !exists {
		return nil, core.NewObjectNotFoundError("case", caseID)
	}

	status := core.TaskStatus(req.Status)
	if req.Status == "" {
		status = core.TaskStatusTodo
	}

	now := time.Now().UTC()
	task := &core.Task{
		ID:          uuid.NewString(),
		UUID:        uuid.NewString(),
		CaseID:      caseID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Tags:        req.Tags,
		AssigneeID:  req.AssigneeID,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		if errors.Is(err, storage.ErrConstraintViolation) {
			return nil, core.NewObjectNotFoundError("case", caseID)
		}
		return nil, core.WrapUnexpected(err)
	}

	s.hooks.DispatchPost(ctx, hctx, task)
	s.tracker.Record(ctx, caseID, actor.ID, fmt.Sprintf("added task %q", task.Title))
	return task, nil
}

// Get fetches a task by ID. No hooks, no audit.
func (s *TaskService) Get(ctx context.Context, id string) (*core.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return nil, core.NewObjectNotFoundError("task", id)
		}
		return nil, core.WrapUnexpected(err)
	}
	return task, nil
}

// Update merges the partial request onto the stored task. The owning case
// never changes, whatever the payload says.
func (s *TaskService) Update(ctx context.Context, actor *core.User, id string, req *core.TaskUpdateRequest) (_ *core.Task, err error) {
	defer observeOperation(hooks.EntityTask, hooks.EventUpdate, time.Now(), &err)

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	hctx := hooks.Context{Entity: hooks.EntityTask, Event: hooks.EventUpdate, CaseID: task.CaseID, ActorID: actor.ID}
	payload, err := s.hooks.DispatchPre(ctx, hctx, req)
	if err != nil {
		return nil, core.NewBusinessError(err.Error())
	}
	req, ok := payload.(*core.TaskUpdateRequest)
	if !ok {
		return nil, core.NewBusinessError("hook returned an incompatible payload")
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = core.TaskStatus(*req.Status)
	}
	if req.Tags != nil {
		task.Tags = *req.Tags
	}
	if req.AssigneeID != nil {
		task.AssigneeID = *req.AssigneeID
	}

	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return nil, core.NewObjectNotFoundError("task", id)
		}
		return nil, core.WrapUnexpected(err)
	}

	s.hooks.DispatchPost(ctx, hctx, task)
	s.tracker.Record(ctx, task.CaseID, actor.ID, fmt.Sprintf("updated task %q", task.Title))
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, actor *core.User, id string) (err error) {
	defer observeOperation(hooks.EntityTask, hooks.EventDelete, time.Now(), &err)

	hctx := hooks.Context{Entity: hooks.EntityTask, Event: hooks.EventDelete, ActorID: actor.ID}
	if _, err := s.hooks.DispatchPre(ctx, hctx, id); err != nil {
		return core.NewBusinessError(err.Error())
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	hctx.CaseID = task.CaseID

	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return core.NewObjectNotFoundError("task", id)
		}
		return core.WrapUnexpected(err)
	}

	s.hooks.DispatchPost(ctx, hctx, task)
	s.tracker.Record(ctx, task.CaseID, actor.ID, fmt.Sprintf("deleted task %q", task.Title))
	return nil
}

// List returns a page of one case's tasks matching the supplied filters.
func (s *TaskService) List(ctx context.Context, caseID string, filters *core.TaskFilters) (*core.Page[*core.Task], error) {
	filters.Normalize()
	tasks, total, err := s.tasks.ListTasks(ctx, caseID, filters)
	if err != nil {
		s.logger.Errorw("Task listing failed", "case_id", caseID, "error", err)
		return nil, core.NewBusinessError("filtering error")
	}
	return core.NewPage(tasks, total, filters.Pagination), nil
}
