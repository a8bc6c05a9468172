package hub

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/MarcoPoloResearchLab/showcall/backend/internal/hub"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
