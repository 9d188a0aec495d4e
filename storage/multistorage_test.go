package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, id, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock://" + m.name
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{"all backends available", []bool{true, true, true}, true},
		{"some backends available", []bool{false, true, false}, true},
		{"no backends available", []bool{false, false, false}, false},
		{"no backends", []bool{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.StorageBackend
			for i, available := range tt.backends {
				m := &MockStorageBackend{name: fmt.Sprintf("mock-%d", i)}
				m.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, m)
			}

			multi := NewMultiStorageBackend(backends, testLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))
		})
	}
}

func TestMultiStorageBackend_Fetch(t *testing.T) {
	event := []byte(`{"kind":"invoice_funded"}`)
	id := interfaces.ComputeID(event)
	rpcErr := errors.New("connection reset")

	tests := []struct {
		name      string
		setup     func(a, b *MockStorageBackend)
		wantData  []byte
		wantErrIs error
		wantErr   bool
	}{
		{
			name: "first backend has the content",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.EventType).Return(event, nil)
			},
			wantData: event,
		},
		{
			name: "falls back to the second backend",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.EventType).Return(nil, interfaces.ErrContentNotFound)
				b.On("Available", mock.Anything).Return(true)
				b.On("Fetch", mock.Anything, id, interfaces.EventType).Return(event, nil)
			},
			wantData: event,
		},
		{
			name: "unavailable backends are skipped",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(false)
				b.On("Available", mock.Anything).Return(true)
				b.On("Fetch", mock.Anything, id, interfaces.EventType).Return(event, nil)
			},
			wantData: event,
		},
		{
			name: "missing everywhere",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(true)
				a.On("Fetch", mock.Anything, id, interfaces.EventType).Return(nil, interfaces.ErrContentNotFound)
				b.On("Available", mock.Anything).Return(true)
				b.On("Fetch", mock.Anything, id, interfaces.EventType).Return(nil, rpcErr)
			},
			wantErrIs: interfaces.ErrContentNotFound,
		},
		{
			name: "nothing available",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(false)
				b.On("Available", mock.Anything).Return(false)
			},
			wantErrIs: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &MockStorageBackend{name: "mock-a"}
			b := &MockStorageBackend{name: "mock-b"}
			tt.setup(a, b)

			multi := NewMultiStorageBackend([]interfaces.StorageBackend{a, b}, testLogger())
			data, err := multi.Fetch(context.Background(), id, interfaces.EventType)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantData, data)

			a.AssertExpectations(t)
			b.AssertExpectations(t)
		})
	}
}

func TestMultiStorageBackend_Store(t *testing.T) {
	snapshot := []byte(`{"admin":"0x00000000000000000000000000000000000000a1"}`)
	id := interfaces.ComputeID(snapshot)
	storeErr := errors.New("bucket not writable")

	tests := []struct {
		name    string
		setup   func(a, b *MockStorageBackend)
		wantID  interfaces.ContentID
		wantErr bool
	}{
		{
			name: "stored everywhere",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(true)
				a.On("Store", mock.Anything, snapshot, interfaces.SnapshotType).Return(id, nil)
				b.On("Available", mock.Anything).Return(true)
				b.On("Store", mock.Anything, snapshot, interfaces.SnapshotType).Return(id, nil)
			},
			wantID: id,
		},
		{
			name: "one backend failing is tolerated",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(true)
				a.On("Store", mock.Anything, snapshot, interfaces.SnapshotType).Return(interfaces.ContentID{}, storeErr)
				b.On("Available", mock.Anything).Return(true)
				b.On("Store", mock.Anything, snapshot, interfaces.SnapshotType).Return(id, nil)
			},
			wantID: id,
		},
		{
			name: "all backends fail",
			setup: func(a, b *MockStorageBackend) {
				a.On("Available", mock.Anything).Return(true)
				a.On("Store", mock.Anything, snapshot, interfaces.SnapshotType).Return(interfaces.ContentID{}, storeErr)
				b.On("Available", mock.Anything).Return(false)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &MockStorageBackend{name: "mock-a"}
			b := &MockStorageBackend{name: "mock-b"}
			tt.setup(a, b)

			multi := NewMultiStorageBackend([]interfaces.StorageBackend{a, b}, testLogger())
			got, err := multi.Store(context.Background(), snapshot, interfaces.SnapshotType)

			if tt.wantErr {
				assert.ErrorIs(t, err, storeErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantID, got)

			a.AssertExpectations(t)
			b.AssertExpectations(t)
		})
	}
}

func TestMultiStorageBackend_LocationURI(t *testing.T) {
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{
		&MockStorageBackend{name: "a"},
		&MockStorageBackend{name: "b"},
	}, testLogger())
	assert.Equal(t, "multi:[mock://a,mock://b]", multi.LocationURI())
}
