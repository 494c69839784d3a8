package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"nereus/app/cli/cmd/client"
	pclient "nereus/pkg/client"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type downloadOpts struct {
	output string // --output
	file   string // --file
}

// NewDownloadCommand returns a new instance of a nereus command
func NewDownloadCommand(opts *client.Options) *cobra.Command {
	var downloadOpts downloadOpts
	command := &cobra.Command{
		Use:   "download JOB_ID",
		Short: "download the output archive of a job, or a single file with --file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New(*opts)
			if err != nil {
				log.Fatal(err)
			}
			if downloadOpts.file != "" && !opts.Direct {
				// single files are only served by the worker
				if cli, err = client.Worker(*opts); err != nil {
					log.Fatal(err)
				}
			}
			n, out, err := download(context.Background(), cli, args[0], downloadOpts)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("%d bytes written to %s\n", n, out)
		},
	}
	command.Flags().StringVarP(&downloadOpts.output, "output", "o", "", "output path (default to the archive or file name)")
	command.Flags().StringVar(&downloadOpts.file, "file", "", "path of a single file in the job output")
	return command
}

func download(ctx context.Context, cli pclient.Client, jobID string, opts downloadOpts) (int64, string, error) {
	var (
		body io.ReadCloser
		err  error
	)
	out := opts.output
	if opts.file != "" {
		body, err = cli.DownloadFile(ctx, jobID, opts.file)
		if out == "" {
			out = path.Base(opts.file)
		}
	} else {
		body, err = cli.Download(ctx, jobID)
		if out == "" {
			out = pclient.ArchiveName(jobID)
		}
	}
	if err != nil {
		return 0, out, err
	}
	defer body.Close()

	f, err := os.Create(out)
	if err != nil {
		return 0, out, errors.Wrapf(err, "cannot create %s", out)
	}
	defer f.Close()
	n, err := io.Copy(f, body)
	if err != nil {
		return n, out, errors.Wrapf(err, "cannot write %s", out)
	}
	return n, out, nil
}
