package mocks

import (
	"context"
	"io"
	"time"

	"chatgate/internal/model"
	"chatgate/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockGatewayService struct {
	mock.Mock
}

func (m *MockGatewayService) OpenSession(ctx context.Context, name string) (*model.Session, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockGatewayService) Status(ctx context.Context, name string) (*model.Session, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockGatewayService) SendText(ctx context.Context, session, to, body string) (*model.Message, error) {
	args := m.Called(ctx, session, to, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockGatewayService) SendMedia(ctx context.Context, session, to string, r io.Reader, originalFilename, contentType string, size int64, caption string) (*model.Message, error) {
	args := m.Called(ctx, session, to, r, originalFilename, contentType, size, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockGatewayService) ListMessages(ctx context.Context, session string, limit, offset int) (*service.MessageListResult, error) {
	args := m.Called(ctx, session, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MessageListResult), args.Error(1)
}

func (m *MockGatewayService) MediaURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, id, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockGatewayService) Health(ctx context.Context) (*service.HealthReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HealthReport), args.Error(1)
}
