package mocks

import (
	"context"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockMessenger is a mock implementation of protocol.Messenger interface.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, conversation models.Conversation, msg *models.OutboundMessage) error {
	args := m.Called(ctx, conversation, msg)

	return args.Error(0)
}

// MockAIClient is a mock implementation of protocol.AIClient interface.
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) Complete(ctx context.Context, req *protocol.AIRequest) (*protocol.AIResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.AIResponse), args.Error(1)
}

// MockHTTPFetcher is a mock implementation of protocol.HTTPFetcher interface.
type MockHTTPFetcher struct {
	mock.Mock
}

func (m *MockHTTPFetcher) Fetch(ctx context.Context, req *protocol.HTTPRequest) (*protocol.HTTPResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.HTTPResponse), args.Error(1)
}
