package cmd

import (
	"context"
	"fmt"
	"log"

	"nereus/app/cli/cmd/client"

	"github.com/spf13/cobra"
)

// NewDeleteCommand returns a new instance of a nereus command
func NewDeleteCommand(opts *client.Options) *cobra.Command {
	command := &cobra.Command{
		Use:   "delete JOB_ID...",
		Short: "delete jobs from the worker",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.Worker(*opts)
			if err != nil {
				log.Fatal(err)
			}
			for _, id := range args {
				if err := cli.DeleteJob(context.Background(), id); err != nil {
					log.Fatal(err)
				}
				fmt.Printf("Job %s cleaned up\n", id)
			}
		},
	}
	return command
}
