package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"nereus/pkg/api"
)

// Kind is the kind of a progress event
type Kind string

const (
	KindLog       Kind = "log"
	KindHeartbeat Kind = "heartbeat"
	KindError     Kind = "error"
	KindFileTree  Kind = "filetree"
	KindComplete  Kind = "complete"
	KindFinished  Kind = "finished"
)

const (
	// PrefixFileTree prefixes the json file tree of a completed job
	PrefixFileTree = "FILETREE:"
	// PrefixJobComplete prefixes the id of a completed job
	PrefixJobComplete = "JOB_COMPLETE:"
	// Sentinel is always the last event of a run
	Sentinel = "PIPELINE:FINISHED"
	// HeartbeatText is sent when the pipeline stays silent for a heartbeat interval
	HeartbeatText = "[Heartbeat] Process still running..."
)

var errorPrefixes = []string{"ERROR:", "EXECUTION ERROR:", "STREAMING ERROR:", "GPU server error"}

// Event is a progress event of a pipeline run.
type Event struct {
	Kind Kind
	Text string
}

func (e Event) String() string {
	return e.Text
}

// Last returns true for the event ending a run
func (e Event) Last() bool {
	return e.Kind == KindFinished
}

// Log returns a log event
func Log(format string, args ...interface{}) Event {
	return Event{Kind: KindLog, Text: fmt.Sprintf(format, args...)}
}

// PrefixOutput escapes process output that would otherwise read as a reserved event
const PrefixOutput = "OUTPUT: "

// Output returns the log event of a line printed by the pipeline.
// Lines parsing as a sentinel, heartbeat, FILETREE or JOB_COMPLETE event are prefixed with PrefixOutput.
func Output(line string) Event {
	switch Parse(line).Kind {
	case KindFinished, KindHeartbeat, KindFileTree, KindComplete:
		return Event{Kind: KindLog, Text: PrefixOutput + line}
	}
	return Parse(line)
}

// Errorf returns an error event, its text starts with prefix.
func Errorf(prefix string, format string, args ...interface{}) Event {
	return Event{Kind: KindError, Text: prefix + " " + fmt.Sprintf(format, args...)}
}

// Heartbeat returns a heartbeat event
func Heartbeat() Event {
	return Event{Kind: KindHeartbeat, Text: HeartbeatText}
}

// FileTree returns the event carrying the file tree of a completed job
func FileTree(tree api.FileNode) (Event, error) {
	b, err := json.Marshal(tree)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: KindFileTree, Text: PrefixFileTree + string(b)}, nil
}

// JobComplete returns the event announcing the completion of a job
func JobComplete(jobID string) Event {
	return Event{Kind: KindComplete, Text: PrefixJobComplete + jobID}
}

// Finished returns the event ending a run
func Finished() Event {
	return Event{Kind: KindFinished, Text: Sentinel}
}

// Parse returns the event matching the given payload.
func Parse(payload string) Event {
	switch {
	case payload == Sentinel:
		return Finished()
	case payload == HeartbeatText:
		return Heartbeat()
	case strings.HasPrefix(payload, PrefixFileTree):
		return Event{Kind: KindFileTree, Text: payload}
	case strings.HasPrefix(payload, PrefixJobComplete):
		return Event{Kind: KindComplete, Text: payload}
	}
	for _, p := range errorPrefixes {
		if strings.HasPrefix(payload, p) {
			return Event{Kind: KindError, Text: payload}
		}
	}
	return Event{Kind: KindLog, Text: payload}
}

// Tree decodes the file tree carried by a KindFileTree event.
func (e Event) Tree() (api.FileNode, error) {
	var n api.FileNode
	if e.Kind != KindFileTree {
		return n, fmt.Errorf("event %s does not carry a file tree", e.Kind)
	}
	err := json.Unmarshal([]byte(strings.TrimPrefix(e.Text, PrefixFileTree)), &n)
	return n, err
}

// JobID returns the job id carried by a KindComplete event.
func (e Event) JobID() string {
	if e.Kind != KindComplete {
		return ""
	}
	return strings.TrimPrefix(e.Text, PrefixJobComplete)
}
