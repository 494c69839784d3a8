package common

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	t1 := time.Unix(1577836800, 0)
	t2 := time.Unix(1577845810, 0)

	s := duration(&t1, &t2)
	assert.Equal(t, "2h 30m 10s", s)
	assert.Equal(t, "", duration(nil, &t2))
}

func TestSize(t *testing.T) {
	assert.Equal(t, "512 B", size(512))
	assert.Equal(t, "1.5 KiB", size(1536))
	assert.Equal(t, "2.0 MiB", size(2<<20))
}

var tree = api.FileNode{
	Name: "output",
	Type: api.NodeDirectory,
	Children: []api.FileNode{
		{Name: "mesh", Path: "mesh", Type: api.NodeDirectory, Children: []api.FileNode{
			{Name: "model.obj", Path: "mesh/model.obj", Type: api.NodeFile, Size: 2048},
		}},
		{Name: "report.txt", Path: "report.txt", Type: api.NodeFile, Size: 10},
	},
}

func TestPrintFileTree(t *testing.T) {
	var buf bytes.Buffer
	PrintFileTree(&buf, tree)
	assert.Equal(t, `output
├── mesh
│   └── model.obj (2.0 KiB)
└── report.txt (10 B)
`, buf.String())
}

func TestPrintJobs(t *testing.T) {
	start := time.Unix(1577836800, 0)
	end := start.Add(90 * time.Second)
	var buf bytes.Buffer
	PrintJobs(&buf, api.JobList{
		WorkDir:   "/app/work",
		TotalJobs: 2,
		Jobs: []api.JobSummary{
			{JobID: "j2", Status: api.StatusStarted, Created: start},
			{JobID: "j1", Status: api.StatusCompleted, Created: start, StartedAt: &start, EndedAt: &end, HasOutput: true},
		},
	}, PrintOptions{})

	out := buf.String()
	assert.Contains(t, out, "/app/work")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.True(t, len(lines) >= 3)
	assert.True(t, strings.HasPrefix(lines[len(lines)-2], "● j2"))
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "✔ j1"))
	assert.Contains(t, lines[len(lines)-1], "1m 30s")
}

func TestPrintEvent(t *testing.T) {
	ft, err := events.FileTree(tree)
	require.NoError(t, err)

	tests := []struct {
		name string
		evt  events.Event
		opts PrintOptions
		want string
	}{
		{"log", events.Log("Process started with PID: 1"), PrintOptions{}, "  Process started with PID: 1\n"},
		{"error", events.Errorf("ERROR:", "boom"), PrintOptions{}, "✖ ERROR: boom\n"},
		{"complete", events.JobComplete("j1"), PrintOptions{}, "✔ Job j1 completed\n"},
		{"sentinel", events.Finished(), PrintOptions{}, ""},
		{"raw", events.Finished(), PrintOptions{Raw: true}, events.Sentinel + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintEvent(&buf, tt.evt, tt.opts)
			assert.Equal(t, tt.want, buf.String())
		})
	}

	var buf bytes.Buffer
	PrintEvent(&buf, ft, PrintOptions{})
	assert.Contains(t, buf.String(), "└── report.txt (10 B)")
}
