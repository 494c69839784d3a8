package cmd

import (
	"context"
	"log"
	"os"

	"nereus/app/cli/cmd/client"
	"nereus/app/cli/cmd/common"

	"github.com/spf13/cobra"
)

// NewFilesCommand returns a new instance of a nereus command
func NewFilesCommand(opts *client.Options) *cobra.Command {
	command := &cobra.Command{
		Use:   "files JOB_ID",
		Short: "print the output file tree of a job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New(*opts)
			if err != nil {
				log.Fatal(err)
			}
			files, err := cli.Files(context.Background(), args[0])
			if err != nil {
				log.Fatal(err)
			}
			common.PrintFileTree(os.Stdout, files.Files)
		},
	}
	return command
}
