// Package server holds the http plumbing shared by the nereus services.
package server

import (
	gocontext "context"
	"net/http"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/store"
	"nereus/pkg/util/context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/neko-neko/echo-logrus/v2/log"
	"github.com/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

// New returns an echo instance logging through the shared logger.
// Request bodies larger than bodyLimit (e.g. "2G") are rejected, an empty limit means no limit.
func New(bodyLimit string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = &log.MyLogger{Logger: context.RootLogger()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			context.RootLogger().WithField("request_id", v.RequestID).
				Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.CORS())
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}
	return e
}

// Context returns the context of the request being served, carrying its request id.
func Context(c echo.Context) context.Context {
	ctx := context.FromContext(c.Request().Context())
	id := c.Request().Header.Get(echo.HeaderXRequestID)
	if id == "" {
		id = c.Response().Header().Get(echo.HeaderXRequestID)
	}
	return context.WithRequestID(ctx, id)
}

// HTTPError returns the http error matching err.
// notFound, when set, replaces the message of not found errors.
func HTTPError(err error, notFound string) *echo.HTTPError {
	var apiErr api.Error
	switch {
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if apiErr.HTTPStatus() == http.StatusNotFound && notFound != "" && apiErr.Kind == api.KindNotFound {
			msg = notFound
		}
		return echo.NewHTTPError(apiErr.HTTPStatus(), msg).SetInternal(err)
	case errors.As(errors.Cause(err), &store.ErrNotFound{}):
		msg := err.Error()
		if notFound != "" {
			msg = notFound
		}
		return echo.NewHTTPError(http.StatusNotFound, msg).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

// Run serves e on the given port until ctx is done, then shuts it down.
func Run(ctx context.Context, e *echo.Echo, port string) error {
	errc := make(chan error, 1)
	go func() {
		ctx.Logger().Infof("http server started on :%s", port)
		errc <- e.Start(":" + port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	ctx.Logger().Info("shutting down http server")
	sctx, cancel := gocontext.WithTimeout(gocontext.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "cannot shut down http server")
	}
	return nil
}
