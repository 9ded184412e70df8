package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Queue gauges and processed/dropped counters register against this
// scope. Instruments resolve through the global meter provider, so they
// are no-ops unless the host installs a metrics SDK.
const instrumentationName = "github.com/matchdesk/console/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
