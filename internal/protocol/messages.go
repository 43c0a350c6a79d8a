package protocol

import "time"

// ProgressEvent announces a coarse phase transition for one feature area.
// Percent is approximate and purely presentational; consumers must not
// derive per-item completion from it.
type ProgressEvent struct {
	Feature   string    `json:"feature"`
	Phase     string    `json:"phase"`
	Percent   int       `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}

// DispatchEvent records the start or outcome of one generation dispatch.
type DispatchEvent struct {
	Feature       string    `json:"feature"`
	CorrelationID string    `json:"correlation_id"`
	Path          string    `json:"path"` // singleton, batch
	Items         int       `json:"items"`
	Succeeded     int       `json:"succeeded,omitempty"`
	Failed        int       `json:"failed,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	SubjectProgressPrefix   = "studio.progress" // studio.progress.<feature>
	SubjectDispatchStarted  = "studio.dispatch.started"
	SubjectDispatchFinished = "studio.dispatch.finished"
)

// ProgressSubject returns the per-feature progress subject.
func ProgressSubject(feature string) string {
	return SubjectProgressPrefix + "." + feature
}
