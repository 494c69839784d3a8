package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"nereus/app/cli/cmd/client"
	"nereus/app/cli/cmd/common"
	pclient "nereus/pkg/client"
	"nereus/pkg/events"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type submitOpts struct {
	raw    bool   // --raw
	userID string // --user
}

// NewSubmitCommand returns a new instance of a nereus command
func NewSubmitCommand(opts *client.Options) *cobra.Command {
	var submitOpts submitOpts
	command := &cobra.Command{
		Use:   "submit ARCHIVE",
		Short: "upload a zip archive of images and follow the pipeline run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cli, err := client.New(*opts)
			if err != nil {
				log.Fatal(err)
			}
			if err := submit(context.Background(), cli, args[0], submitOpts); err != nil {
				log.Fatal(err)
			}
		},
	}
	command.Flags().BoolVar(&submitOpts.raw, "raw", false, "print the event stream as received")
	command.Flags().StringVar(&submitOpts.userID, "user", "", "user id sent to the worker (direct mode only)")

	return command
}

func submit(ctx context.Context, cli pclient.Client, path string, opts submitOpts) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Errorf("cannot open file %s", path)
	}
	defer f.Close()

	resp, err := cli.RunPipeline(ctx, pclient.Upload{
		Filename: filepath.Base(path),
		Content:  f,
		UserID:   opts.userID,
	})
	if err != nil {
		return errors.Wrapf(err, "cannot submit %s", path)
	}
	defer resp.Body.Close()

	if opts.raw {
		_, err := io.Copy(os.Stdout, resp.Body)
		return err
	}

	if resp.JobID != "" {
		fmt.Printf("Pipeline submitted with job ID %s\n", resp.JobID)
	}
	completed := false
	dec := events.NewDecoder(resp.Body)
	for {
		evt, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "cannot read event stream")
		}
		common.PrintEvent(os.Stdout, evt, common.PrintOptions{})
		if evt.Kind == events.KindComplete {
			completed = true
		}
		if evt.Last() {
			break
		}
	}
	if !completed {
		return errors.New("pipeline did not complete")
	}
	return nil
}
