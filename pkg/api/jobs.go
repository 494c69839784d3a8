package api

import "time"

// NodeType is the type of a file tree node
type NodeType string

const (
	// NodeFile is a regular file
	NodeFile NodeType = "file"
	// NodeDirectory is a directory
	NodeDirectory NodeType = "directory"
	// NodeError stands for a path that could not be read
	NodeError NodeType = "error"
)

// FileNode is a node of a file tree.
type FileNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Type     NodeType   `json:"type"`
	Size     int64      `json:"size"`
	Children []FileNode `json:"children"`
}

// Walk calls f for n and all of its descendants, depth first.
func (n FileNode) Walk(f func(FileNode)) {
	f(n)
	for _, c := range n.Children {
		c.Walk(f)
	}
}

// JobFiles is the file tree of a job output
type JobFiles struct {
	JobID string   `json:"job_id"`
	Files FileNode `json:"files"`
}

// JobSummary describes a job for listings.
type JobSummary struct {
	JobID     string     `json:"job_id"`
	Created   time.Time  `json:"created"`
	Status    Status     `json:"status"`
	HasOutput bool       `json:"has_output"`
	Contents  []string   `json:"contents"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// JobList is the list of jobs known by a worker
type JobList struct {
	Jobs          []JobSummary `json:"jobs"`
	TotalJobs     int          `json:"total_jobs"`
	WorkDir       string       `json:"workdir"`
	WorkDirExists bool         `json:"workdir_exists"`
}

// Health is the worker health report
type Health struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	ScriptPath       string `json:"script_path"`
	ScriptExists     bool   `json:"script_exists"`
	ScriptExecutable bool   `json:"script_executable"`
	WorkDir          string `json:"work_dir"`
	WorkDirExists    bool   `json:"work_dir_exists"`
}

// RelayHealth is the combined health report of the relay
type RelayHealth struct {
	Status      string      `json:"status"`
	MainBackend string      `json:"main_backend"`
	GPUServer   interface{} `json:"gpu_server"`
}

// Message is a plain message response
type Message struct {
	Message string `json:"message"`
}
