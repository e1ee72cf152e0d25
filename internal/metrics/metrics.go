package metrics

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scope = "github.com/RimgO/RealTimeTranslateDisplay"

// Meter returns the process-wide meter for a component.
func Meter(component string) metric.Meter {
	return otel.Meter(scope + "/" + component)
}

// Counter creates an Int64Counter, falling back to a no-op instrument when the provider
// rejects the definition.
func Counter(meter metric.Meter, name, description string, log *slog.Logger) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		log.Warn("failed to initialize metric", slog.String("metric", name), slog.String("error", err.Error()))
		return noop.Int64Counter{}
	}
	return c
}
