package mocks

import (
	"context"
	"io"

	"chatgate/internal/backend"
	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateSession(ctx context.Context, name string) (*backend.SessionState, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.SessionState), args.Error(1)
}

func (m *MockClient) SessionStatus(ctx context.Context, name string) (*backend.SessionState, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.SessionState), args.Error(1)
}

func (m *MockClient) SendText(ctx context.Context, session, to, body string) (*backend.SendResult, error) {
	args := m.Called(ctx, session, to, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.SendResult), args.Error(1)
}

func (m *MockClient) SendMedia(ctx context.Context, session, to string, r io.Reader, info backend.MediaInfo) (*backend.SendResult, error) {
	args := m.Called(ctx, session, to, r, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.SendResult), args.Error(1)
}

func (m *MockClient) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
