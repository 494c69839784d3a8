package common

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/events"
)

var (
	jobStatusIconMap map[api.Status]string
)

func init() {
	jobStatusIconMap = map[api.Status]string{
		api.StatusUnknown:   "◷",
		api.StatusStarted:   "●",
		api.StatusCompleted: "✔",
		api.StatusFailed:    "✖",
	}
}

// PrintOptions defines print options
type PrintOptions struct {
	// Raw prints events as received, without rendering
	Raw bool
}

// PrintJobs prints the job list in the given writer
func PrintJobs(w io.Writer, list api.JobList, opts PrintOptions) {
	fmt.Fprintln(w)

	// Header
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "WorkDir:\t%s\n", list.WorkDir)
	fmt.Fprintf(tw, "Jobs:\t%d\n", list.TotalJobs)
	tw.Flush()
	fmt.Fprintln(w)

	tw.Init(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSTATUS\tCREATED\tDURATION\tOUTPUT")
	for _, j := range list.Jobs {
		output := ""
		if j.HasOutput {
			output = "yes"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\n", jobStatusIconMap[j.Status], j.JobID, j.Status, date(&j.Created), duration(j.StartedAt, j.EndedAt), output)
	}
	tw.Flush()
}

// PrintFileTree prints the file tree rooted at n in the given writer
func PrintFileTree(w io.Writer, n api.FileNode) {
	fmt.Fprintf(w, "%s\n", n.Name)
	printChildren(w, n.Children, "")
}

func printChildren(w io.Writer, nodes []api.FileNode, indent string) {
	for i, c := range nodes {
		prefix, next := "├── ", "│   "
		if i == len(nodes)-1 {
			prefix, next = "└── ", "    "
		}
		switch c.Type {
		case api.NodeFile:
			fmt.Fprintf(w, "%s%s%s (%s)\n", indent, prefix, c.Name, size(c.Size))
		default:
			fmt.Fprintf(w, "%s%s%s\n", indent, prefix, c.Name)
		}
		printChildren(w, c.Children, indent+next)
	}
}

// PrintEvent prints a pipeline event in the given writer
func PrintEvent(w io.Writer, e events.Event, opts PrintOptions) {
	if opts.Raw {
		fmt.Fprintln(w, e.Text)
		return
	}
	switch e.Kind {
	case events.KindFileTree:
		tree, err := e.Tree()
		if err != nil {
			fmt.Fprintf(w, "%s invalid file tree: %s\n", jobStatusIconMap[api.StatusFailed], err)
			return
		}
		fmt.Fprintln(w)
		PrintFileTree(w, tree)
		fmt.Fprintln(w)
	case events.KindComplete:
		fmt.Fprintf(w, "%s Job %s completed\n", jobStatusIconMap[api.StatusCompleted], e.JobID())
	case events.KindError:
		fmt.Fprintf(w, "%s %s\n", jobStatusIconMap[api.StatusFailed], e.Text)
	case events.KindHeartbeat:
		fmt.Fprintf(w, "%s %s\n", jobStatusIconMap[api.StatusUnknown], e.Text)
	case events.KindFinished:
	default:
		fmt.Fprintf(w, "  %s\n", e.Text)
	}
}

func size(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("2 Jan 2006 15:04:05")
}

func duration(start, end *time.Time) string {
	var d time.Duration
	if start == nil {
		return ""
	}
	if end == nil {
		d = time.Since(*start)
	} else {
		d = end.Sub(*start)
	}

	// Print
	if d.Seconds() <= 60.0 {
		return fmt.Sprintf("%0.0fs", d.Seconds())
	} else if d.Minutes() <= 60.0 {
		m := int64(d.Minutes())
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dm %0.0fs", m, s)
	} else {
		h := int64(d.Hours())
		m := int64(math.Mod(d.Minutes(), 60))
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dh %0.dm %0.0fs", h, m, s)
	}
}
