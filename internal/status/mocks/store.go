package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/washu-tag/scout-kate/internal/status"
)

// MockStore is a mock implementation of the status.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) AppendFileStatus(ctx context.Context, fs status.FileStatus) error {
	args := m.Called(ctx, fs)
	return args.Error(0)
}

func (m *MockStore) RecordHL7File(ctx context.Context, f status.HL7File) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockStore) LogStatuses(ctx context.Context, q status.Query) ([]status.FileStatus, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]status.FileStatus), args.Error(1)
}

func (m *MockStore) HL7Statuses(ctx context.Context, q status.Query) ([]status.FileStatus, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]status.FileStatus), args.Error(1)
}

func (m *MockStore) HL7Files(ctx context.Context, logPathSuffix string) ([]status.HL7File, error) {
	args := m.Called(ctx, logPathSuffix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]status.HL7File), args.Error(1)
}

func (m *MockStore) RecentHL7Files(ctx context.Context, q status.Query) ([]status.RecentHL7File, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]status.RecentHL7File), args.Error(1)
}
