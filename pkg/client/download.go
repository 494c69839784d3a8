package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	// DownloadMethod is http method used for endpoint Download
	DownloadMethod     = http.MethodGet
	downloadPathFormat = "/download/%s"

	// DownloadFileMethod is http method used for endpoint DownloadFile
	DownloadFileMethod     = http.MethodGet
	downloadFilePathFormat = "/download/%s/file"
)

var (
	// DownloadPath is the path definition of the endpoint Download.
	DownloadPath = fmt.Sprintf(downloadPathFormat, fmt.Sprintf(":%s", JobIDParam))
	// DownloadFilePath is the path definition of the endpoint DownloadFile.
	DownloadFilePath = fmt.Sprintf(downloadFilePathFormat, fmt.Sprintf(":%s", JobIDParam))
)

// ArchiveName returns the file name of the result archive of a job
func ArchiveName(jobID string) string {
	return fmt.Sprintf("photogrammetry_results_%s.zip", jobID)
}

func (cli *client) Download(ctx context.Context, jobID string) (io.ReadCloser, error) {
	return cli.fetch(ctx, DownloadMethod, jobPath(downloadPathFormat, jobID), fmt.Sprintf("results of job %s", jobID))
}

func (cli *client) DownloadFile(ctx context.Context, jobID, path string) (io.ReadCloser, error) {
	p := jobPath(downloadFilePathFormat, jobID) + "?" + url.Values{FilePathQuery: {path}}.Encode()
	return cli.fetch(ctx, DownloadFileMethod, p, fmt.Sprintf("file %s of job %s", path, jobID))
}

func (cli *client) fetch(ctx context.Context, method, path, what string) (io.ReadCloser, error) {
	resp, cancel, err := cli.do(ctx, method, path, cli.timeouts.Download, true)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, what); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}
	return cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}
