package client

import (
	"context"
	"fmt"
	"net/http"

	"nereus/pkg/api"
)

const (
	// JobsMethod is http method used for endpoint Jobs
	JobsMethod = http.MethodGet
	// JobsPath is the path definition of the endpoint Jobs.
	JobsPath = "/jobs"

	// DeleteJobMethod is http method used for endpoint DeleteJob
	DeleteJobMethod     = http.MethodDelete
	deleteJobPathFormat = "/jobs/%s"
)

var (
	// DeleteJobPath is the path definition of the endpoint DeleteJob.
	DeleteJobPath = fmt.Sprintf(deleteJobPathFormat, fmt.Sprintf(":%s", JobIDParam))
)

func (cli *client) Jobs(ctx context.Context) (api.JobList, error) {
	resp, cancel, err := cli.do(ctx, JobsMethod, JobsPath, cli.timeouts.Default, false)
	if err != nil {
		return api.JobList{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	var res api.JobList
	if err := decode(resp, "jobs", &res); err != nil {
		return api.JobList{}, err
	}
	return res, nil
}

func (cli *client) DeleteJob(ctx context.Context, jobID string) error {
	resp, cancel, err := cli.do(ctx, DeleteJobMethod, jobPath(deleteJobPathFormat, jobID), cli.timeouts.Default, false)
	if err != nil {
		return err
	}
	defer cancel()
	defer resp.Body.Close()

	var res api.Message
	return decode(resp, fmt.Sprintf("job %s", jobID), &res)
}
