package telemetry

import (
	"context"

	"github.com/robalyx/bailiff/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
)

// ServiceVersion is reported with every trace.
const ServiceVersion = config.RepositoryVersion

// SetupTracing configures the global OpenTelemetry providers to export to
// Uptrace. It returns false without doing anything when no DSN is set.
func SetupTracing(serviceType ServiceType, cfg *config.Telemetry) bool {
	if cfg.UptraceDSN == "" {
		return false
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName("bailiff-"+serviceType.String()),
		uptrace.WithServiceVersion(ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	return true
}

// ShutdownTracing flushes pending spans.
func ShutdownTracing(ctx context.Context) error {
	return uptrace.Shutdown(ctx)
}
