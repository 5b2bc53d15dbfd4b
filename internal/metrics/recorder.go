// Package metrics records routing and retrieval decisions made by the
// conversation engine.
package metrics

import "time"

// Recorder is implemented by every metrics backend.  All methods must be
// safe for concurrent use.
type Recorder interface {
	// ObserveRoute records which handler answered a turn and why.
	ObserveRoute(agent, reason string)
	// ObserveIdentity records the outcome of an identity resolution attempt.
	ObserveIdentity(outcome string)
	// ObserveClinicalPath records which branch of the context cascade ran.
	ObserveClinicalPath(path string)
	// ObserveCompletion records one call to the completion service.
	ObserveCompletion(model string, success bool, duration time.Duration)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) ObserveRoute(string, string) {}
func (NopRecorder) ObserveIdentity(string) {}
func (NopRecorder) ObserveClinicalPath(string) {}
func (NopRecorder) ObserveCompletion(string, bool, time.Duration) {}
