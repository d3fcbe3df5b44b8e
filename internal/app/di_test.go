package app

import (
	"context"
	"testing"

	"github.com/allisson/flexauth/internal/config"
)

// TestNewContainer verifies that a new container can be created with a valid configuration.
func TestNewContainer(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "info",
	}

	container := NewContainer(cfg)

	if container == nil {
		t.Fatal("expected non-nil container")
	}

	if container.Config() != cfg {
		t.Error("container config does not match provided config")
	}
}

// TestContainerLogger verifies that the logger can be retrieved from the container.
func TestContainerLogger(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "debug",
	}

	container := NewContainer(cfg)
	logger := container.Logger()

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	// Calling Logger() again should return the same instance (singleton)
	logger2 := container.Logger()
	if logger != logger2 {
		t.Error("expected same logger instance on multiple calls")
	}
}

// TestContainerLoggerDefaultLevel verifies that logger defaults to info level
// for an unrecognized LogLevel value.
func TestContainerLoggerDefaultLevel(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "invalid",
	}

	container := NewContainer(cfg)
	logger := container.Logger()

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

// TestContainerLazyInitialization verifies that components are only initialized when accessed.
func TestContainerLazyInitialization(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "info",
	}

	container := NewContainer(cfg)

	if container.logger != nil {
		t.Error("expected logger to be nil before first access")
	}

	logger := container.Logger()
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	if container.logger == nil {
		t.Error("expected logger to be initialized after access")
	}
}

// TestContainerShutdown verifies that the shutdown method can be called safely
// even when no components were ever initialized.
func TestContainerShutdown(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "info",
	}

	container := NewContainer(cfg)

	if err := container.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error during shutdown: %v", err)
	}
}

// TestContainerDBErrors verifies that database connection errors are cached
// and returned consistently on repeated calls.
func TestContainerDBErrors(t *testing.T) {
	cfg := &config.Config{
		MongoURI:      "mongodb://invalid-host-that-does-not-resolve:27017",
		MongoDatabase: "flexauth_test",
	}

	container := NewContainer(cfg)

	_, err := container.DB(context.Background())
	if err == nil {
		t.Error("expected error when connecting with invalid config")
	}

	_, err2 := container.DB(context.Background())
	if err2 == nil {
		t.Error("expected error on second call to DB()")
	}
}

// TestContainerKEKErrors verifies that an unparsable SERVER_KEK value
// surfaces a cached error rather than panicking.
func TestContainerKEKErrors(t *testing.T) {
	cfg := &config.Config{
		ServerKEK: "not-a-valid-kek",
	}

	container := NewContainer(cfg)

	_, err := container.KEK(context.Background())
	if err == nil {
		t.Error("expected error when resolving an invalid SERVER_KEK")
	}

	_, err2 := container.KEK(context.Background())
	if err2 == nil {
		t.Error("expected error on second call to KEK()")
	}
}

// TestContainerCryptoService verifies that the crypto service can be
// retrieved from the container and is reused across calls.
func TestContainerCryptoService(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "info",
	}

	container := NewContainer(cfg)
	cryptoSvc := container.CryptoService()

	if cryptoSvc == nil {
		t.Fatal("expected non-nil crypto service")
	}

	cryptoSvc2 := container.CryptoService()
	if cryptoSvc != cryptoSvc2 {
		t.Error("expected same crypto service instance on multiple calls")
	}
}

// TestContainerPasswordService verifies that the password service can be
// retrieved from the container and is reused across calls.
func TestContainerPasswordService(t *testing.T) {
	cfg := &config.Config{
		LogLevel: "info",
	}

	container := NewContainer(cfg)
	passwordSvc := container.PasswordService()

	if passwordSvc == nil {
		t.Fatal("expected non-nil password service")
	}

	passwordSvc2 := container.PasswordService()
	if passwordSvc != passwordSvc2 {
		t.Error("expected same password service instance on multiple calls")
	}
}

// TestContainerTokenServiceErrors verifies that a missing private key file
// surfaces a cached error rather than panicking.
func TestContainerTokenServiceErrors(t *testing.T) {
	cfg := &config.Config{
		PrivateKeyPath: "/nonexistent/private_key.pem",
		ServerURL:      "http://localhost:8080",
	}

	container := NewContainer(cfg)

	_, err := container.TokenService()
	if err == nil {
		t.Error("expected error when private key file does not exist")
	}

	_, err2 := container.TokenService()
	if err2 == nil {
		t.Error("expected error on second call to TokenService()")
	}
}

// TestContainerMetricsProviderDisabled verifies that the metrics provider is
// nil, not an error, when metrics are disabled.
func TestContainerMetricsProviderDisabled(t *testing.T) {
	cfg := &config.Config{
		MetricsEnabled: false,
	}

	container := NewContainer(cfg)

	provider, err := container.MetricsProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider != nil {
		t.Error("expected nil metrics provider when metrics are disabled")
	}
}

// TestContainerBusinessMetricsNoOpFallback verifies that BusinessMetrics
// falls back to a no-op implementation when metrics are disabled.
func TestContainerBusinessMetricsNoOpFallback(t *testing.T) {
	cfg := &config.Config{
		MetricsEnabled: false,
	}

	container := NewContainer(cfg)

	businessMetrics, err := container.BusinessMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if businessMetrics == nil {
		t.Fatal("expected non-nil business metrics even when disabled")
	}
}
