package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nereus/pkg/api"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	// JobIDParam is the param definition for JobID
	JobIDParam = "jobid"

	// FilePathQuery is the query parameter naming a file of a job output
	FilePathQuery = "file_path"
)

// Client is the API client that performs all operations to a nereus worker
type Client interface {
	// Health returns the worker health report.
	Health(ctx context.Context) (api.Health, error)

	// Jobs lists the jobs known by the worker.
	Jobs(ctx context.Context) (api.JobList, error)

	// Files returns the file tree of a job output.
	Files(ctx context.Context, jobID string) (api.JobFiles, error)

	// Download returns the zip archive of a job output. The caller must close it.
	Download(ctx context.Context, jobID string) (io.ReadCloser, error)

	// DownloadFile returns a single file of a job output. The caller must close it.
	DownloadFile(ctx context.Context, jobID, path string) (io.ReadCloser, error)

	// DeleteJob removes a job from the worker.
	DeleteJob(ctx context.Context, jobID string) error

	// RunPipeline uploads an archive and returns the progress event stream of the pipeline run.
	RunPipeline(ctx context.Context, upload Upload) (RunResponse, error)
}

// Timeouts are the time budgets of the client calls.
// A zero value means no timeout.
type Timeouts struct {
	Health   time.Duration `json:"health" env:"HEALTH_TIMEOUT"`
	Files    time.Duration `json:"files" env:"FILES_TIMEOUT"`
	Download time.Duration `json:"download" env:"DOWNLOAD_TIMEOUT"`
	Default  time.Duration `json:"default" env:"DEFAULT_TIMEOUT"`

	// Connect bounds connection setup of the run call
	Connect time.Duration `json:"connect" env:"CONNECT_TIMEOUT"`
	// Write bounds each write of the upload of the run call
	Write time.Duration `json:"write" env:"WRITE_TIMEOUT"`
	// Read bounds the wait for the response and each read of the run call event stream
	Read time.Duration `json:"read" env:"READ_TIMEOUT"`
}

// DefaultTimeouts returns the timeouts used when none are given
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Health:   10 * time.Second,
		Files:    10 * time.Second,
		Download: 30 * time.Second,
		Default:  30 * time.Second,
		Connect:  30 * time.Second,
		Write:    30 * time.Second,
		Read:     3600 * time.Second,
	}
}

// Option configures a client
type Option func(*client)

// WithTimeouts sets the timeouts of the client calls
func WithTimeouts(t Timeouts) Option {
	return func(c *client) {
		c.timeouts = t
	}
}

// WithRetries sets the number of retries of idempotent calls
func WithRetries(n int) Option {
	return func(c *client) {
		c.httpcli.RetryMax = n
	}
}

// WithToken sets a bearer token sent with every request
func WithToken(token string) Option {
	return func(c *client) {
		c.token = token
	}
}

// NewClient creates a nereus worker client
func NewClient(uri string, opts ...Option) (Client, error) {
	if uri == "" {
		return nil, errors.New("uri is not set")
	}
	httpcli := retryablehttp.NewClient()
	httpcli.Logger = nil
	httpcli.RetryMax = 2
	httpcli.RetryWaitMin = 200 * time.Millisecond
	httpcli.RetryWaitMax = 2 * time.Second
	httpcli.ErrorHandler = retryablehttp.PassthroughErrorHandler
	u := strings.TrimRight(uri, "/")
	c := &client{
		httpcli:  httpcli,
		uri:      u,
		timeouts: DefaultTimeouts(),
	}
	for _, o := range opts {
		o(c)
	}
	c.runcli = newStreamingClient(c.timeouts)
	return c, nil
}

type client struct {
	httpcli  *retryablehttp.Client
	runcli   *retryablehttp.Client
	uri      string
	token    string
	timeouts Timeouts
}

// do sends a request bounded by timeout.
// When stream is true the timeout only bounds the wait for the response headers, the body can be read for as long as needed.
// The returned cancel func must be called once the response body is consumed.
func (cli *client) do(ctx context.Context, method, path string, timeout time.Duration, stream bool) (*http.Response, context.CancelFunc, error) {
	if timeout <= 0 {
		timeout = cli.timeouts.Default
	}
	ctx, cancelCtx := context.WithCancel(ctx)
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, cancelCtx)
	}
	cancel := func() {
		if timer != nil {
			timer.Stop()
		}
		cancelCtx()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, cli.uri+path, nil)
	if err != nil {
		cancel()
		return nil, nil, errors.Wrap(err, "cannot create request")
	}
	cli.authorize(req.Request)
	resp, err := cli.httpcli.Do(req)
	if err != nil {
		cancel()
		return nil, nil, ErrUnavailable{errors.Wrap(err, "cannot do request")}
	}
	if stream && timer != nil {
		timer.Stop()
	}
	return resp, cancel, nil
}

func (cli *client) authorize(req *http.Request) {
	if cli.token != "" {
		req.Header.Set("Authorization", "Bearer "+cli.token)
	}
}

// decode decodes the json body of a 200 response into v
func decode(resp *http.Response, what string, v interface{}) error {
	if err := checkStatus(resp, what); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "cannot decode response")
	}
	return nil
}

// checkStatus returns the error matching a non 200 response.
func checkStatus(resp *http.Response, what string) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound{what}
	}
	msg := readMessage(resp.Body)
	if resp.StatusCode == http.StatusBadRequest {
		return ErrBadRequest{errors.New(msg)}
	}
	return ErrStatus{Code: resp.StatusCode, Message: msg}
}

// readMessage returns the message of an error response body, the raw body if it is not an HTTPError.
func readMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return ""
	}
	var httpErr HTTPError
	if err := json.Unmarshal(b, &httpErr); err == nil && httpErr.Message != nil {
		return httpErr.Error()
	}
	return strings.TrimSpace(string(b))
}

// cancelOnClose cancels a request context once its body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func jobPath(format, jobID string) string {
	return fmt.Sprintf(format, jobID)
}
