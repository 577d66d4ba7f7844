package optimizer

import (
	"log"

	"github.com/zombar/optimizer/models"
)

// Events receives structured notifications from the pipeline. The core
// performs no direct I/O beyond these callbacks; the service wires in a
// telemetry-backed implementation.
type Events interface {
	PassStarted(documentID string, rubric models.Rubric)
	PassCompleted(result *models.ImprovementPassResult)
	ProviderDegraded(provider, reason string)
}

// logEvents is the default sink when no Events implementation is supplied.
type logEvents struct{}

func (logEvents) PassStarted(documentID string, rubric models.Rubric) {
	log.Printf("improvement pass started: document=%s rubric=%s", documentID, rubric)
}

func (logEvents) PassCompleted(result *models.ImprovementPassResult) {
	log.Printf("improvement pass completed: document=%s rubric=%s score %d -> %d",
		result.DocumentID, result.PassName, result.ScoreBefore, result.ScoreAfter)
}

func (logEvents) ProviderDegraded(provider, reason string) {
	log.Printf("provider degraded: %s (%s)", provider, reason)
}

// multiEvents fans notifications out to several sinks.
type multiEvents []Events

func (m multiEvents) PassStarted(documentID string, rubric models.Rubric) {
	for _, e := range m {
		e.PassStarted(documentID, rubric)
	}
}

func (m multiEvents) PassCompleted(result *models.ImprovementPassResult) {
	for _, e := range m {
		e.PassCompleted(result)
	}
}

func (m multiEvents) ProviderDegraded(provider, reason string) {
	for _, e := range m {
		e.ProviderDegraded(provider, reason)
	}
}

// CombineEvents merges multiple sinks into one. Nil entries are skipped.
func CombineEvents(sinks ...Events) Events {
	var out multiEvents
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return logEvents{}
	}
	return out
}
