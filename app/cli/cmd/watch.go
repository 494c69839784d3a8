package cmd

import (
	"context"
	"log"
	"time"

	"nereus/app/cli/cmd/client"
	"nereus/app/cli/cmd/common"
	"nereus/pkg/api"
	pclient "nereus/pkg/client"

	tm "github.com/buger/goterm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type watchOpts struct {
	once     bool          // --once
	interval time.Duration // --interval
}

// NewWatchCommand returns a new instance of a nereus command
func NewWatchCommand(opts *client.Options) *cobra.Command {
	var watchOpts watchOpts
	command := &cobra.Command{
		Use:   "watch [JOB_ID]",
		Short: "watch the jobs of the worker, or a single job until it finishes",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.Worker(*opts)
			if err != nil {
				log.Fatal(err)
			}
			jobID := ""
			if len(args) == 1 {
				jobID = args[0]
			}
			if err := watch(context.Background(), cli, jobID, watchOpts); err != nil {
				log.Fatal(err)
			}
		},
	}
	command.Flags().BoolVar(&watchOpts.once, "once", false, "print once and exit")
	command.Flags().DurationVar(&watchOpts.interval, "interval", 2*time.Second, "refresh interval")
	return command
}

func watch(ctx context.Context, cli pclient.Client, jobID string, opts watchOpts) error {
	tm.Clear()
	for {
		list, err := cli.Jobs(ctx)
		if err != nil {
			return errors.Wrap(err, "cannot list jobs")
		}
		done := false
		if jobID != "" {
			list, done, err = only(list, jobID)
			if err != nil {
				return err
			}
		}
		tm.MoveCursor(1, 1)
		common.PrintJobs(tm.Screen, list, common.PrintOptions{})
		tm.Flush()
		if done || opts.once {
			break
		}
		time.Sleep(opts.interval)
	}
	return nil
}

// only keeps the given job in the list and tells whether it is finished.
func only(list api.JobList, jobID string) (api.JobList, bool, error) {
	for _, j := range list.Jobs {
		if j.JobID == jobID {
			list.Jobs = []api.JobSummary{j}
			list.TotalJobs = 1
			return list, j.Status.Finished(), nil
		}
	}
	return list, false, errors.Errorf("job %s not found", jobID)
}
