package service

import (
	"context"
	"testing"

	"casetrack/core"
	"casetrack/hooks"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockCaseStorage is a mock implementation of core.CaseStorage.
type MockCaseStorage struct {
	mock.Mock
}

func (m *MockCaseStorage) CreateCase(ctx context.Context, c *core.Case) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCaseStorage) GetCase(ctx context.Context, id string) (*core.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Case), args.Error(1)
}

func (m *MockCaseStorage) UpdateCase(ctx context.Context, c *core.Case) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCaseStorage) DeleteCase(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCaseStorage) ListCases(ctx context.Context, filters *core.CaseFilters) ([]*core.Case, int64, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*core.Case), args.Get(1).(int64), args.Error(2)
}

func (m *MockCaseStorage) CaseExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockTaskStorage is a mock implementation of core.TaskStorage.
type MockTaskStorage struct {
	mock.Mock
}

func (m *MockTaskStorage) CreateTask(ctx context.Context, t *core.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskStorage) GetTask(ctx context.Context, id string) (*core.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Task), args.Error(1)
}

func (m *MockTaskStorage) UpdateTask(ctx context.Context, t *core.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskStorage) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskStorage) ListTasks(ctx context.Context, caseID string, filters *core.TaskFilters) ([]*core.Task, int64, error) {
	args := m.Called(ctx, caseID, filters)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*core.Task), args.Get(1).(int64), args.Error(2)
}

func (m *MockTaskStorage) CountTasksByCase(ctx context.Context, caseID string) (int64, error) {
	args := m.Called(ctx, caseID)
	return args.Get(0).(int64), args.Error(1)
}

// MockIOCStorage is a mock implementation of core.IOCStorage.
type MockIOCStorage struct {
	mock.Mock
}

func (m *MockIOCStorage) CreateIOC(ctx context.Context, ioc *core.IOC) error {
	args := m.Called(ctx, ioc)
	return args.Error(0)
}

func (m *MockIOCStorage) GetIOC(ctx context.Context, id string) (*core.IOC, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.IOC), args.Error(1)
}

func (m *MockIOCStorage) UpdateIOC(ctx context.Context, ioc *core.IOC) error {
	args := m.Called(ctx, ioc)
	return args.Error(0)
}

func (m *MockIOCStorage) DeleteIOC(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIOCStorage) ListIOCs(ctx context.Context, caseID string, filters *core.IOCFilters) ([]*core.IOC, int64, error) {
	args := m.Called(ctx, caseID, filters)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*core.IOC), args.Get(1).(int64), args.Error(2)
}

func (m *MockIOCStorage) CountIOCsByCase(ctx context.Context, caseID string) (int64, error) {
	args := m.Called(ctx, caseID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIOCStorage) IOCTypeExists(ctx context.Context, typeID int64) (bool, error) {
	args := m.Called(ctx, typeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIOCStorage) TlpExists(ctx context.Context, tlpID int64) (bool, error) {
	args := m.Called(ctx, tlpID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIOCStorage) ListIOCTypes(ctx context.Context) ([]core.IOCType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.IOCType), args.Error(1)
}

// ============================================================================
// Test Helpers
// ============================================================================

// recordingTracker collects audit messages without touching storage.
type recordingTracker struct {
	records []string
	cases   []string
}

func (r *recordingTracker) Record(ctx context.Context, caseID, userID, message string) {
	r.records = append(r.records, message)
	r.cases = append(r.cases, caseID)
}

func newTestHooks(t *testing.T) *hooks.Dispatcher {
	t.Helper()
	return hooks.NewDispatcher(0, zap.NewNop().Sugar())
}

func testActor() *core.User {
	return &core.User{ID: "user-1", Username: "analyst", Permissions: []core.Permission{core.PermStandardUser}, Active: true}
}
