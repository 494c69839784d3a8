package cmd

import (
	"context"
	"log"
	"os"

	"nereus/app/cli/cmd/client"
	"nereus/app/cli/cmd/common"

	"github.com/spf13/cobra"
)

// NewJobsCommand returns a new instance of a nereus command
func NewJobsCommand(opts *client.Options) *cobra.Command {
	command := &cobra.Command{
		Use:   "jobs",
		Short: "list the jobs of the worker",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.Worker(*opts)
			if err != nil {
				log.Fatal(err)
			}
			list, err := cli.Jobs(context.Background())
			if err != nil {
				log.Fatal(err)
			}
			common.PrintJobs(os.Stdout, list, common.PrintOptions{})
		},
	}
	return command
}
