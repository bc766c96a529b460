package mocks

import (
	"context"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockFlowRepository is a mock implementation of persistence.FlowRepository interface.
type MockFlowRepository struct {
	mock.Mock
}

func (m *MockFlowRepository) GetAll(ctx context.Context) ([]*models.FlowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.FlowDefinition), args.Error(1)
}

func (m *MockFlowRepository) GetActive(ctx context.Context) ([]*models.FlowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.FlowDefinition), args.Error(1)
}

func (m *MockFlowRepository) GetByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.FlowDefinition), args.Error(1)
}

func (m *MockFlowRepository) Save(ctx context.Context, flow *models.FlowDefinition) error {
	args := m.Called(ctx, flow)

	return args.Error(0)
}

func (m *MockFlowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockConversationRepository is a mock implementation of persistence.ConversationRepository interface.
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Get(ctx context.Context, conversationID string) (*models.ConversationExecutionState, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ConversationExecutionState), args.Error(1)
}

func (m *MockConversationRepository) Save(ctx context.Context, state *models.ConversationExecutionState) error {
	args := m.Called(ctx, state)

	return args.Error(0)
}

func (m *MockConversationRepository) Delete(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)

	return args.Error(0)
}

// MockDelayRepository is a mock implementation of persistence.DelayRepository interface.
type MockDelayRepository struct {
	mock.Mock
}

func (m *MockDelayRepository) Schedule(ctx context.Context, delay *models.DelayedResumption) error {
	args := m.Called(ctx, delay)

	return args.Error(0)
}

func (m *MockDelayRepository) GetByID(ctx context.Context, id string) (*models.DelayedResumption, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DelayedResumption), args.Error(1)
}

func (m *MockDelayRepository) Cancel(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)

	return args.Error(0)
}

func (m *MockDelayRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.DelayedResumption, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.DelayedResumption), args.Error(1)
}

func (m *MockDelayRepository) MarkFired(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)

	return args.Error(0)
}

func (m *MockDelayRepository) ReleaseExpiredClaims(ctx context.Context, now time.Time, lease time.Duration) (int, error) {
	args := m.Called(ctx, now, lease)

	return args.Int(0), args.Error(1)
}

func (m *MockDelayRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.DelayedResumption, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.DelayedResumption), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Flows         *MockFlowRepository
	Conversations *MockConversationRepository
	Delays        *MockDelayRepository
}

// NewMockPersistence creates a MockPersistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Flows:         &MockFlowRepository{},
		Conversations: &MockConversationRepository{},
		Delays:        &MockDelayRepository{},
	}
}

func (m *MockPersistence) FlowRepository() persistence.FlowRepository {
	return m.Flows
}

func (m *MockPersistence) ConversationRepository() persistence.ConversationRepository {
	return m.Conversations
}

func (m *MockPersistence) DelayRepository() persistence.DelayRepository {
	return m.Delays
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
