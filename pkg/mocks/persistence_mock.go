package mocks

import (
	"context"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockActionRepository is a mock implementation of persistence.ActionRepository interface.
type MockActionRepository struct {
	mock.Mock
}

func (m *MockActionRepository) List(ctx context.Context, opts persistence.ListActionsOptions) (*persistence.ActionListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.ActionListResult), args.Error(1)
}

func (m *MockActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Action), args.Error(1)
}

func (m *MockActionRepository) GetByName(ctx context.Context, name string, enabledOnly bool) (*models.Action, error) {
	args := m.Called(ctx, name, enabledOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Action), args.Error(1)
}

func (m *MockActionRepository) Save(ctx context.Context, action *models.Action) error {
	args := m.Called(ctx, action)

	return args.Error(0)
}

func (m *MockActionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockCredentialRepository is a mock implementation of persistence.CredentialRepository interface.
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) List(ctx context.Context) ([]*models.AuthCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuthCredential), args.Error(1)
}

func (m *MockCredentialRepository) GetByID(ctx context.Context, id string) (*models.AuthCredential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AuthCredential), args.Error(1)
}

func (m *MockCredentialRepository) GetByName(ctx context.Context, name string) (*models.AuthCredential, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.AuthCredential), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, credential *models.AuthCredential) error {
	args := m.Called(ctx, credential)

	return args.Error(0)
}

func (m *MockCredentialRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockActionLogRepository is a mock implementation of persistence.ActionLogRepository interface.
type MockActionLogRepository struct {
	mock.Mock
}

func (m *MockActionLogRepository) Append(ctx context.Context, entry *models.ActionLog) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockActionLogRepository) List(ctx context.Context, opts persistence.ListActionLogsOptions) (*persistence.ActionLogListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.ActionLogListResult), args.Error(1)
}

func (m *MockActionLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)

	return args.Get(0).(int64), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Actions     *MockActionRepository
	Credentials *MockCredentialRepository
	ActionLogs  *MockActionLogRepository
}

// NewMockPersistence creates a MockPersistence with empty repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Actions:     &MockActionRepository{},
		Credentials: &MockCredentialRepository{},
		ActionLogs:  &MockActionLogRepository{},
	}
}

func (m *MockPersistence) ActionRepository() persistence.ActionRepository {
	return m.Actions
}

func (m *MockPersistence) CredentialRepository() persistence.CredentialRepository {
	return m.Credentials
}

func (m *MockPersistence) ActionLogRepository() persistence.ActionLogRepository {
	return m.ActionLogs
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
