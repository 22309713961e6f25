package sim

import (
	"github.com/fdamstra/speed-limit-demonstration/internal/telemetry"
	"github.com/fdamstra/speed-limit-demonstration/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation
// core and loop orchestration.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}
