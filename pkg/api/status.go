package api

// Status is the lifecycle status of a job
type Status string

const (
	// StatusUnknown job exists but the pipeline never started
	StatusUnknown Status = "unknown"

	// StatusStarted the pipeline was started for the job
	StatusStarted Status = "started"

	// StatusCompleted the pipeline exited successfully
	StatusCompleted Status = "completed"

	// StatusFailed the pipeline failed or could not be launched
	StatusFailed Status = "failed"
)

// statusRank gives the precedence used when several statuses are recorded for a job.
var statusRank = map[Status]int{
	StatusUnknown:   0,
	StatusStarted:   1,
	StatusCompleted: 2,
	StatusFailed:    3,
}

// Finished returns true if the status is considered final
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid returns true if s is one of the known statuses
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Precedes returns true if o takes precedence over s.
// Precedence is failed > completed > started > unknown.
func (s Status) Precedes(o Status) bool {
	return statusRank[s] < statusRank[o]
}

// Highest returns the status with the highest precedence, StatusUnknown if none given.
func Highest(statuses ...Status) Status {
	h := StatusUnknown
	for _, s := range statuses {
		if h.Precedes(s) {
			h = s
		}
	}
	return h
}

// ParseStatus returns the status matching s, StatusUnknown otherwise.
// "running" is accepted for started.
func ParseStatus(s string) Status {
	if s == "running" {
		return StatusStarted
	}
	st := Status(s)
	if !st.Valid() {
		return StatusUnknown
	}
	return st
}
