package metrics

import (
	"strconv"
	"time"
)

// StageObserved records one pipeline stage and how long it took.
func StageObserved(stage, status string, d time.Duration) {
	if !enabled {
		return
	}
	stageTotal.WithLabelValues(stage, status).Inc()
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RunFinished records the outcome of a whole run.
func RunFinished(status string) {
	if !enabled {
		return
	}
	runTotal.WithLabelValues(status).Inc()
}

// IdentifierExtracted records an identifier extraction by source.
func IdentifierExtracted(source string, found bool) {
	if !enabled {
		return
	}
	identifierTotal.WithLabelValues(source, strconv.FormatBool(found)).Inc()
}
