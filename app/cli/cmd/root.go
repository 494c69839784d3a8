package cmd

import (
	"nereus/app/cli/cmd/client"

	"github.com/spf13/cobra"
)

// NewRootCommand returns a new instance of a nereus command
func NewRootCommand() *cobra.Command {
	opts := client.DefaultOptions()
	rootCmd := &cobra.Command{
		Use:   "nereus",
		Short: "nereus is the command line interface to the nereus photogrammetry pipeline",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.URL, "url", opts.URL, "relay url ($NEREUS_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.WorkerURL, "worker-url", opts.WorkerURL, "worker url ($NEREUS_WORKER_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.Token, "token", opts.Token, "bearer token sent to the relay ($NEREUS_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&opts.Direct, "worker", false, "talk to the worker directly instead of the relay")

	rootCmd.AddCommand(NewSubmitCommand(&opts))
	rootCmd.AddCommand(NewJobsCommand(&opts))
	rootCmd.AddCommand(NewWatchCommand(&opts))
	rootCmd.AddCommand(NewFilesCommand(&opts))
	rootCmd.AddCommand(NewDownloadCommand(&opts))
	rootCmd.AddCommand(NewDeleteCommand(&opts))
	return rootCmd
}
