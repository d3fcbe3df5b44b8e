package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSessionCleaner struct{ mock.Mock }

func (m *mockSessionCleaner) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestRunCleanExpiredSessions(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		sessions := &mockSessionCleaner{}
		sessions.On("CleanExpired", ctx).Return(int64(42), nil)

		var out bytes.Buffer
		err := RunCleanExpiredSessions(ctx, sessions, logger, &out)

		require.NoError(t, err)
		require.Contains(t, out.String(), "Deleted 42 expired session(s)")
		sessions.AssertExpectations(t)
	})

	t.Run("error", func(t *testing.T) {
		sessions := &mockSessionCleaner{}
		sessions.On("CleanExpired", ctx).Return(int64(0), errors.New("connection reset"))

		err := RunCleanExpiredSessions(ctx, sessions, logger, &bytes.Buffer{})
		require.Error(t, err)
		sessions.AssertExpectations(t)
	})
}
