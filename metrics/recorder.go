package metrics

import "time"

// Outcome labels a rendered document.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeFetchError  Outcome = "fetch_error"
	OutcomeRenderError Outcome = "render_error"
)

// Recorder receives observations from the client and server. Labels are
// plain strings so callers do not depend on this package's types.
type Recorder interface {
	IncRender(outcome Outcome)
	IncClassification(recognized bool)
	IncReference(kind, rule string)
	IncCacheResult(state string)
	ObserveFetchDuration(d time.Duration, success bool)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) IncRender(Outcome)                        {}
func (NoopRecorder) IncClassification(bool)                   {}
func (NoopRecorder) IncReference(string, string)              {}
func (NoopRecorder) IncCacheResult(string)                    {}
func (NoopRecorder) ObserveFetchDuration(time.Duration, bool) {}
