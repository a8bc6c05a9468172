package timecode

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
