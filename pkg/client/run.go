package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"nereus/pkg/api"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	// RunPipelineMethod is http method used for endpoint RunPipeline
	RunPipelineMethod = http.MethodPost
	// RunPipelinePath is the path definition of the endpoint RunPipeline.
	RunPipelinePath = "/run-pipeline/"
	// UploadField is the multipart field carrying the uploaded archive
	UploadField = "file"
)

// Upload is an archive to run the pipeline on
type Upload struct {
	Filename string
	// Content is read from its start, it is rewound if the request has to be sent again
	Content io.ReadSeeker
	// UserID is forwarded to the worker for tracking
	UserID string
}

// RunResponse is the response of the RunPipeline endpoint.
type RunResponse struct {
	JobID string
	// Body is the server-sent event stream of the run. The caller must close it.
	Body io.ReadCloser
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (cli *client) RunPipeline(ctx context.Context, up Upload) (RunResponse, error) {
	boundary := multipart.NewWriter(io.Discard).Boundary()

	var body *uploadReader
	getBody := func() (io.Reader, error) {
		body = newUploadReader(boundary, up)
		return body, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, RunPipelineMethod, cli.uri+RunPipelinePath, retryablehttp.ReaderFunc(getBody))
	if err != nil {
		return RunResponse{}, errors.Wrap(err, "cannot create request")
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("Accept", "text/event-stream")
	if up.UserID != "" {
		req.Header.Set(api.HeaderUserID, up.UserID)
	}
	cli.authorize(req.Request)

	resp, err := cli.runcli.Do(req)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return RunResponse{}, ErrUnavailable{errors.Wrap(err, "cannot do request")}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer body.Close()
		return RunResponse{}, ErrStatus{Code: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	return RunResponse{
		JobID: resp.Header.Get(api.HeaderJobID),
		Body:  resp.Body,
	}, nil
}

// uploadReader streams the multipart form holding an upload.
// The form is only written once the reader is first read from.
type uploadReader struct {
	once     sync.Once
	pr       *io.PipeReader
	pw       *io.PipeWriter
	boundary string
	up       Upload
}

func newUploadReader(boundary string, up Upload) *uploadReader {
	pr, pw := io.Pipe()
	return &uploadReader{pr: pr, pw: pw, boundary: boundary, up: up}
}

func (u *uploadReader) Read(p []byte) (int, error) {
	u.once.Do(func() {
		go writeUpload(u.pw, u.boundary, u.up)
	})
	return u.pr.Read(p)
}

func (u *uploadReader) Close() error {
	return u.pr.Close()
}

// writeUpload writes the multipart form holding the upload to w
func writeUpload(w *io.PipeWriter, boundary string, up Upload) {
	var err error
	if _, err = up.Content.Seek(0, io.SeekStart); err != nil {
		w.CloseWithError(errors.Wrap(err, "cannot rewind upload"))
		return
	}
	mw := multipart.NewWriter(w)
	err = mw.SetBoundary(boundary)
	if err == nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, UploadField, quoteEscaper.Replace(up.Filename)))
		h.Set("Content-Type", "application/zip")
		var part io.Writer
		part, err = mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, up.Content)
		}
	}
	if err == nil {
		err = mw.Close()
	}
	w.CloseWithError(err)
}
