package main

import (
	"net/http"

	"nereus/pkg/client"
	"nereus/pkg/events"
	"nereus/pkg/util/server"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func (h handlers) RunPipeline(c echo.Context) error {
	ctx := server.Context(c)
	authorization := c.Request().Header.Get(echo.HeaderAuthorization)
	if _, err := h.relay.Authenticate(authorization); err != nil {
		return httpError(err, "")
	}

	fh, err := c.FormFile(client.UploadField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Error reading file: "+err.Error())
	}
	defer f.Close()

	frames, err := h.relay.Run(ctx, client.Upload{Filename: fh.Filename, Content: f}, authorization)
	if err != nil {
		return httpError(err, "")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, events.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	for {
		select {
		case b, ok := <-frames:
			if !ok {
				return nil
			}
			if _, err := w.Write(b); err != nil {
				ctx.Logger().Warnf("cannot write event: %s", err)
				continue
			}
			w.Flush()
		case <-ctx.Done():
			ctx.Logger().Warn("caller disconnected")
			return nil
		}
	}
}

func (h handlers) Download(c echo.Context) error {
	ctx := server.Context(c)
	id := c.Param(client.JobIDParam)
	rc, err := h.relay.Download(ctx, id, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return httpError(err, "Download failed")
	}
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+client.ArchiveName(id)+`"`)
	return c.Stream(http.StatusOK, "application/zip", rc)
}

func (h handlers) Files(c echo.Context) error {
	ctx := server.Context(c)
	files, err := h.relay.Files(ctx, c.Param(client.JobIDParam), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return httpError(err, "Failed to get files")
	}
	return c.JSON(http.StatusOK, files)
}

func (h handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.relay.Health(server.Context(c)))
}

// httpError returns the http error matching err, worker statuses are passed through with msg.
func httpError(err error, msg string) error {
	var st client.ErrStatus
	if errors.As(err, &st) {
		return echo.NewHTTPError(st.Code, msg).SetInternal(err)
	}
	return server.HTTPError(err, "")
}
