package client

import (
	"context"
	"fmt"
	"net/http"

	"nereus/pkg/api"
)

const (
	// FilesMethod is http method used for endpoint Files
	FilesMethod     = http.MethodGet
	filesPathFormat = "/jobs/%s/files"
)

var (
	// FilesPath is the path definition of the endpoint Files.
	FilesPath = fmt.Sprintf(filesPathFormat, fmt.Sprintf(":%s", JobIDParam))
)

func (cli *client) Files(ctx context.Context, jobID string) (api.JobFiles, error) {
	resp, cancel, err := cli.do(ctx, FilesMethod, jobPath(filesPathFormat, jobID), cli.timeouts.Files, false)
	if err != nil {
		return api.JobFiles{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	var res api.JobFiles
	if err := decode(resp, fmt.Sprintf("job %s", jobID), &res); err != nil {
		return api.JobFiles{}, err
	}
	return res, nil
}
