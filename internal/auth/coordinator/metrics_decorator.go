package coordinator

import (
	"context"
	"time"

	authDomain "github.com/allisson/flexauth/internal/auth/domain"
	"github.com/allisson/flexauth/internal/metrics"
)

// AuthCoordinator is the interface WithMetrics decorates, satisfied by
// *Coordinator.
type AuthCoordinator interface {
	SignUp(ctx context.Context, in authDomain.SignUpInput) (*authDomain.Response, error)
	SignIn(ctx context.Context, in authDomain.SignInInput) (*authDomain.Response, error)
}

// coordinatorWithMetrics decorates AuthCoordinator with metrics
// instrumentation, grounded on the teacher's auth usecase metrics decorator.
type coordinatorWithMetrics struct {
	next    AuthCoordinator
	metrics metrics.BusinessMetrics
}

// WithMetrics wraps an AuthCoordinator with metrics recording.
func WithMetrics(next AuthCoordinator, m metrics.BusinessMetrics) AuthCoordinator {
	return &coordinatorWithMetrics{next: next, metrics: m}
}

// SignUp records metrics for account-creation operations.
func (c *coordinatorWithMetrics) SignUp(ctx context.Context, in authDomain.SignUpInput) (*authDomain.Response, error) {
	start := time.Now()
	resp, err := c.next.SignUp(ctx, in)

	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, "auth", "sign_up", status)
	c.metrics.RecordDuration(ctx, "auth", "sign_up", time.Since(start), status)

	return resp, err
}

// SignIn records metrics for sign-in operations.
func (c *coordinatorWithMetrics) SignIn(ctx context.Context, in authDomain.SignInInput) (*authDomain.Response, error) {
	start := time.Now()
	resp, err := c.next.SignIn(ctx, in)

	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, "auth", "sign_in", status)
	c.metrics.RecordDuration(ctx, "auth", "sign_in", time.Since(start), status)

	return resp, err
}
