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

type mockUserRequestCleaner struct{ mock.Mock }

func (m *mockUserRequestCleaner) CleanExpired(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func TestRunCleanExpired(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		users := &mockUserRequestCleaner{}
		users.On("CleanExpired", ctx).Return(int64(3), int64(7), nil)

		var out bytes.Buffer
		err := RunCleanExpired(ctx, users, logger, &out)

		require.NoError(t, err)
		require.Contains(t, out.String(), "Deleted 3 expired password reset request(s)")
		require.Contains(t, out.String(), "7 expired email verification request(s)")
		users.AssertExpectations(t)
	})

	t.Run("error", func(t *testing.T) {
		users := &mockUserRequestCleaner{}
		users.On("CleanExpired", ctx).Return(int64(0), int64(0), errors.New("db unavailable"))

		err := RunCleanExpired(ctx, users, logger, &bytes.Buffer{})
		require.Error(t, err)
		users.AssertExpectations(t)
	})
}
