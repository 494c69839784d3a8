package context

import (
	gocontext "context"
	"io"

	"github.com/sirupsen/logrus"
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return l
}

// SetLogLevel sets the level of the logger shared by all contexts.
// Unknown levels are rejected.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	base.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the output of the logger shared by all contexts.
func SetLogOutput(w io.Writer) {
	base.SetOutput(w)
}

// RootLogger returns the logger shared by all contexts.
func RootLogger() *logrus.Logger {
	return base
}

// Context extends the regular golang context.Context interface with a logger and the ids of the request being served.
type Context interface {
	gocontext.Context
	Logger() *logrus.Entry
	RequestID() string
	JobID() string
	UserID() string
}

// Background returns a non-nil, empty Context.
func Background() Context {
	return ctx{
		Context: gocontext.Background(),
	}
}

// FromContext returns a new context from the given go context.
// Ids already carried by c are kept.
func FromContext(c gocontext.Context) Context {
	if asCtx, ok := c.(Context); ok {
		return asCtx
	}
	return ctx{
		Context: c,
	}
}

// WithRequestID returns a copy of the context with a requestID.
func WithRequestID(c Context, requestID string) Context {
	return ctx{
		c,
		requestID,
		c.JobID(),
		c.UserID(),
	}
}

// WithJobID returns a copy of the context with a jobID.
func WithJobID(c Context, jobID string) Context {
	return ctx{
		c,
		c.RequestID(),
		jobID,
		c.UserID(),
	}
}

// WithUserID returns a copy of the context with a userID.
func WithUserID(c Context, userID string) Context {
	return ctx{
		c,
		c.RequestID(),
		c.JobID(),
		userID,
	}
}

// Detach returns a copy of the context that is never cancelled but keeps its ids.
func Detach(c Context) Context {
	return ctx{
		gocontext.WithoutCancel(c),
		c.RequestID(),
		c.JobID(),
		c.UserID(),
	}
}

type ctx struct {
	gocontext.Context
	requestID string
	jobID     string
	userID    string
}

func (c ctx) Logger() *logrus.Entry {
	e := logrus.NewEntry(base)
	if c.RequestID() != "" {
		e = e.WithField("request_id", c.RequestID())
	}
	if c.JobID() != "" {
		e = e.WithField("job_id", c.JobID())
	}
	if c.UserID() != "" {
		e = e.WithField("user_id", c.UserID())
	}
	return e
}

func (c ctx) RequestID() string {
	return c.requestID
}

func (c ctx) JobID() string {
	return c.jobID
}

func (c ctx) UserID() string {
	return c.userID
}
