package main

import (
	"net/http"

	"nereus/pkg/api"
	"nereus/pkg/client"
	"nereus/pkg/events"
	"nereus/pkg/util/context"
	"nereus/pkg/util/server"

	"github.com/labstack/echo/v4"
)

func (h handlers) RunPipeline(c echo.Context) error {
	ctx := server.Context(c)
	if user := c.Request().Header.Get(api.HeaderUserID); user != "" {
		ctx = context.WithUserID(ctx, user)
	}

	fh, err := c.FormFile(client.UploadField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	ctx.Logger().Infof("received pipeline request for file %s (%d bytes)", fh.Filename, fh.Size)
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Error reading file")
	}
	defer f.Close()

	res, err := h.gateway.Ingest(ctx, f, fh.Filename)
	if err != nil {
		ctx.Logger().Warnf("upload rejected: %s", err)
		return server.HTTPError(err, "")
	}
	ctx = context.WithJobID(ctx, res.Job.ID)
	ctx.Logger().Infof("job created with %d images", res.ImageCount)

	ch := h.exec.Run(ctx, res.Job)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, events.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(api.HeaderJobID, res.Job.ID)
	w.WriteHeader(http.StatusOK)

	send := func(e events.Event) error {
		if err := events.Encode(w, e); err != nil {
			return err
		}
		w.Flush()
		return nil
	}
	if err := send(events.Log("Job %s started with %d images", res.Job.ID, res.ImageCount)); err != nil {
		ctx.Logger().Warnf("cannot write event: %s", err)
	}
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := send(e); err != nil {
				ctx.Logger().Warnf("cannot write event: %s", err)
			}
		case <-ctx.Done():
			ctx.Logger().Warn("caller disconnected")
			return nil
		}
	}
}
