package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Reconciliation counters (submitted, acks merged, duplicates, replays)
// register against this scope via the global meter provider.
const instrumentationName = "github.com/matchdesk/console/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
