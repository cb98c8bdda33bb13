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

// IOCService implements the business pipeline for IOCs. Authorization is the
// caller's duty.
type IOCService struct {
	iocs    core.IOCStorage
	cases   core.CaseStorage
	hooks   HookDispatcher
	tracker ActivityTracker
	logger  *zap.SugaredLogger
}

// NewIOCService creates an IOC service.
func NewIOCService(iocs core.IOCStorage, cases core.CaseStorage, dispatcher HookDispatcher, tracker ActivityTracker, logger *zap.SugaredLogger) *IOCService {
	return &IOCService{iocs: iocs, cases: cases, hooks: dispatcher, tracker: tracker, logger: logger}
}

// checkReferenceData validates type and TLP codes against the registries.
func (s *IOCService) checkReferenceData(ctx context.Context, typeID int64, tlpID *int64) error {
	fieldErrors := make(map[string]string)

	if typeID != 0 {
		ok, err := s.iocs.IOCTypeExists(ctx, typeID)
		if err != nil {
			return core.WrapUnexpected(err)
		}
		if !ok {
			fieldErrors["type_id"] = "unknown ioc type"
		}
	}
	if tlpID != nil {
		ok, err := s.iocs.TlpExists(ctx, *tlpID)
		if err != nil {
			return core.WrapUnexpected(err)
		}
		if !ok {
			fieldErrors["tlp_id"] = "unknown tlp"
		}
	}

	if len(fieldErrors) > 0 {
		return core.NewValidationError("validation failed", fieldErrors)
	}
	return nil
}

// Create adds an IOC to a case.
func (s *IOCService) Create(ctx context.Context, actor *core.User, caseID string, req *core.IOCCreateRequest) (_ *core.IOC, err error) {
	defer observeOperation(hooks.EntityIOC, hooks.EventCreate, time.Now(), &err)

	hctx := hooks.Context{Entity: hooks.EntityIOC, Event: hooks.EventCreate, CaseID: caseID, ActorID: actor.ID}

	payload, err := s.hooks.DispatchPre(ctx, hctx, req)
	if err != nil {
		return nil, core.NewBusinessError(err.Error())
	}
	req, ok := payload.(*core.IOCCreateRequest)
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

	if err := s.checkReferenceData(ctx, req.TypeID, req.TlpID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ioc := &core.IOC{
		ID:          uuid.NewString(),
		UUID:        uuid.NewString(),
		CaseID:      caseID,
		Value:       req.Value,
		TypeID:      req.TypeID,
		TlpID:       req.TlpID,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.iocs.CreateIOC(ctx, ioc); err != nil {
		if errors.Is(err, storage.ErrConstraintViolation) {
			return nil, core.NewObjectNotFoundError("case", caseID)
		}
		return nil, core.WrapUnexpected(err)
	}

	// Re-read for the denormalized type name.
	stored, err := s.iocs.GetIOC(ctx, ioc.ID)
	if err == nil {
		ioc = stored
	}

	s.hooks.DispatchPost(ctx, hctx, ioc)
	s.tracker.Record(ctx, caseID, actor.ID, fmt.Sprintf("added ioc %q", ioc.Value))
	return ioc, nil
}

// Get fetches an IOC by ID. No hooks, no audit.
func (s *IOCService) Get(ctx context.Context, id string) (*core.IOC, error) {
	ioc, err := s.iocs.GetIOC(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrIOCNotFound) {
			return nil, core.NewObjectNotFoundError("ioc", id)
		}
		return nil, core.WrapUnexpected(err)
	}
	return ioc, nil
}

// Update merges the partial request onto the stored IOC. The owning case
// never changes, whatever the payload says.
func (s *IOCService) Update(ctx context.Context, actor *core.User, id string, req *core.IOCUpdateRequest) (_ *core.IOC, err error) {
	defer observeOperation(hooks.EntityIOC, hooks.EventUpdate, time.Now(), &err)

	ioc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	hctx := hooks.Context{Entity: hooks.EntityIOC, Event: hooks.EventUpdate, CaseID: ioc.CaseID, ActorID: actor.ID}
	payload, err := s.hooks.DispatchPre(ctx, hctx, req)
	if err != nil {
		return nil, core.NewBusinessError(err.Error())
	}
	req, ok := payload.(*core.IOCUpdateRequest)
	if !ok {
		return nil, core.NewBusinessError("hook returned an incompatible payload")
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var typeID int64
	if req.TypeID != nil {
		typeID = *req.TypeID
	}
	if err := s.checkReferenceData(ctx, typeID, req.TlpID); err != nil {
		return nil, err
	}

	if req.Value != nil {
		ioc.Value = *req.Value
	}
	if req.TypeID != nil {
		ioc.TypeID = *req.TypeID
	}
	if req.TlpID != nil {
		ioc.TlpID = req.TlpID
	}
	if req.Description != nil {
		ioc.Description = *req.Description
	}
	if req.Tags != nil {
		ioc.Tags = *req.Tags
	}

	if err := s.iocs.UpdateIOC(ctx, ioc); err != nil {
		if errors.Is(err, storage.ErrIOCNotFound) {
			return nil, core.NewObjectNotFoundError("ioc", id)
		}
		return nil, core.WrapUnexpected(err)
	}

	stored, err := s.iocs.GetIOC(ctx, id)
	if err == nil {
		ioc = stored
	}

	s.hooks.DispatchPost(ctx, hctx, ioc)
	s.tracker.Record(ctx, ioc.CaseID, actor.ID, fmt.Sprintf("updated ioc %q", ioc.Value))
	return ioc, nil
}

// Delete removes an IOC.
func (s *IOCService) Delete(ctx context.Context, actor *core.User, id string) (err error) {
	defer observeOperation(hooks.EntityIOC, hooks.EventDelete, time.Now(), &err)

	hctx := hooks.Context{Entity: hooks.EntityIOC, Event: hooks.EventDelete, ActorID: actor.ID}
	if _, err := s.hooks.DispatchPre(ctx, hctx, id); err != nil {
		return core.NewBusinessError(err.Error())
	}

	ioc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	hctx.CaseID = ioc.CaseID

	if err := s.iocs.DeleteIOC(ctx, id); err != nil {
		if errors.Is(err, storage.ErrIOCNotFound) {
			return core.NewObjectNotFoundError("ioc", id)
		}
		return core.WrapUnexpected(err)
	}

	s.hooks.DispatchPost(ctx, hctx, ioc)
	s.tracker.Record(ctx, ioc.CaseID, actor.ID, fmt.Sprintf("deleted ioc %q", ioc.Value))
	return nil
}

// List returns a page of one case's IOCs matching the supplied filters.
func (s *IOCService) List(ctx context.Context, caseID string, filters *core.IOCFilters) (*core.Page[*core.IOC], error) {
	filters.Normalize()
	iocs, total, err := s.iocs.ListIOCs(ctx, caseID, filters)
	if err != nil {
		s.logger.Errorw("IOC listing failed", "case_id", caseID, "error", err)
		return nil, core.NewBusinessError("filtering error")
	}
	return core.NewPage(iocs, total, filters.Pagination), nil
}

// ListTypes returns the IOC type registry for UI pickers.
func (s *IOCService) ListTypes(ctx context.Context) ([]core.IOCType, error) {
	types, err := s.iocs.ListIOCTypes(ctx)
	if err != nil {
		return nil, core.WrapUnexpected(err)
	}
	return types, nil
}
