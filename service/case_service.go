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

// CaseService implements the business pipeline for cases: pre-hook,
// validation, persistence, post-hook, audit. Authorization is the caller's
// duty; the service assumes the actor has already been cleared for the
// operation.
type CaseService struct {
	cases   core.CaseStorage
	hooks   HookDispatcher
	tracker ActivityTracker
	logger  *zap.SugaredLogger
}

// NewCaseService creates a case service.
func NewCaseService(cases core.CaseStorage, dispatcher HookDispatcher, tracker ActivityTracker, logger *zap.SugaredLogger) *CaseService {
	return &CaseService{cases: cases, hooks: dispatcher, tracker: tracker, logger: logger}
}

// Create runs the full creation pipeline and returns the stored case.
func (s *CaseService) Create(ctx context.Context, actor *core.User, req *core.CaseCreateRequest) (_ *core.Case, err error) {
	defer observeOperation(hooks.EntityCase, hooks.EventCreate, time.Now(), &err)

	hctx := hooks.Context{Entity: hooks.EntityCase, Event: hooks.EventCreate, ActorID: actor.ID}

	payload, err := s.hooks.DispatchPre(ctx, hctx, req)
	if err != nil {
		return nil, core.NewBusinessError(err.Error())
	}
	req, ok := payload.(*core.CaseCreateRequest)
	if !ok {
		return nil, core.NewBusinessError("hook returned an incompatible payload")
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &core.Case{
		ID:             uuid.NewString(),
		UUID:           uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		Classification: req.Classification,
		SocID:          req.SocID,
		Status:         core.CaseStatusOpen,
		OwnerID:        req.OwnerID,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if c.OwnerID == "" {
		c.OwnerID = actor.ID
	}

	if err := s.cases.CreateCase(ctx, c); err != nil {
		return nil, core.WrapUnexpected(err)
	}

	hctx.CaseID = c.ID
	s.hooks.DispatchPost(ctx, hctx, c)
	s.tracker.Record(ctx, c.ID, actor.ID, fmt.Sprintf("created case %q", c.Name))
	return c, nil
}

// Get fetches a case by ID. No hooks, no audit.
func (s *CaseService) Get(ctx context.Context, id string) (*core.Case, error) {
	c, err := s.cases.GetCase(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			return nil, core.NewObjectNotFoundError("case", id)
		}
		return nil, core.WrapUnexpected(err)
	}
	return c, nil
}

// Update merges the partial request onto the stored case and persists it.
func (s *CaseService) Update(ctx context.Context, actor *core.User, id string, req *core.CaseUpdateRequest) (_ *core.Case, err error) {
	defer observeOperation(hooks.EntityCase, hooks.EventUpdate, time.Now(), &err)

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	hctx := hooks.Context{Entity: hooks.EntityCase, Event: hooks.EventUpdate, CaseID: c.ID, ActorID: actor.ID}
	payload, err := s.hooks.DispatchPre(ctx, hctx, req)
	if err != nil {
		return nil, core.NewBusinessError(err.Error())
	}
	req, ok := payload.(*core.CaseUpdateRequest)
	if !ok {
		return nil, core.NewBusinessError("hook returned an incompatible payload")
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Classification != nil {
		c.Classification = *req.Classification
	}
	if req.SocID != nil {
		c.SocID = *req.SocID
	}
	if req.OwnerID != nil {
		c.OwnerID = *req.OwnerID
	}

	if err := s.cases.UpdateCase(ctx, c); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			return nil, core.NewObjectNotFoundError("case", id)
		}
		return nil, core.WrapUnexpected(err)
	}

	s.hooks.DispatchPost(ctx, hctx, c)
	s.tracker.Record(ctx, c.ID, actor.ID, fmt.Sprintf("updated case %q", c.Name))
	return c, nil
}

// Delete removes a case and everything scoped to it.
func (s *CaseService) Delete(ctx context.Context, actor *core.User, id string) (err error) {
	defer observeOperation(hooks.EntityCase, hooks.EventDelete, time.Now(), &err)

	hctx := hooks.Context{Entity: hooks.EntityCase, Event: hooks.EventDelete, CaseID: id, ActorID: actor.ID}
	if _, err := s.hooks.DispatchPre(ctx, hctx, id); err != nil {
		return core.NewBusinessError(err.Error())
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.cases.DeleteCase(ctx, id); err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			return core.NewObjectNotFoundError("case", id)
		}
		return core.WrapUnexpected(err)
	}

	s.hooks.DispatchPost(ctx, hctx, c)
	s.tracker.Record(ctx, id, actor.ID, fmt.Sprintf("deleted case %q", c.Name))
	return nil
}

// List returns a page of cases matching the supplied filters.
func (s *CaseService) List(ctx context.Context, filters *core.CaseFilters) (*core.Page[*core.Case], error) {
	filters.Normalize()
	cases, total, err := s.cases.ListCases(ctx, filters)
	if err != nil {
		s.logger.Errorw("Case listing failed", "error", err)
		return nil, core.NewBusinessError("filtering error")
	}
	return core.NewPage(cases, total, filters.Pagination), nil
}

// Close transitions an open case to closed.
func (s *CaseService) Close(ctx context.Context, actor *core.User, id string) (_ *core.Case, err error) {
	defer observeOperation(hooks.EntityCase, "close", time.Now(), &err)

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsClosed() {
		return nil, core.NewBusinessError("case is already closed")
	}

	now := time.Now().UTC()
	c.Status = core.CaseStatusClosed
	c.ClosedAt = &now
	if err := s.cases.UpdateCase(ctx, c); err != nil {
		return nil, core.WrapUnexpected(err)
	}

	s.tracker.Record(ctx, c.ID, actor.ID, "closed case")
	return c, nil
}

// Reopen transitions a closed case back to open.
func (s *CaseService) Reopen(ctx context.Context, actor *core.User, id string) (_ *core.Case, err error) {
	defer observeOperation(hooks.EntityCase, "reopen", time.Now(), &err)

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsClosed() {
		return nil, core.NewBusinessError("case is not closed")
	}

	c.Status = core.CaseStatusOpen
	c.ClosedAt = nil
	if err := s.cases.UpdateCase(ctx, c); err != nil {
		return nil, core.WrapUnexpected(err)
	}

	s.tracker.Record(ctx, c.ID, actor.ID, "reopened case")
	return c, nil
}
