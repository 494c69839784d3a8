package relay

import (
	"fmt"
	"io"
	"net"
	"syscall"

	"nereus/pkg/client"
	"nereus/pkg/events"
	"nereus/pkg/util/context"

	"github.com/pkg/errors"
)

// chunk is one item produced by the source: an event or the failure ending the stream.
type chunk struct {
	event events.Event
	err   error
}

// errUnreachable is the failure of the preflight health check
var errUnreachable = errors.New("GPU server is not reachable")

// errTruncated ends a worker stream closed before its sentinel
var errTruncated = errors.New("stream ended before completion")

// streamError is a failure happening once the worker started streaming
type streamError struct {
	error
}

func (err streamError) Unwrap() error {
	return err.error
}

// source checks the worker is healthy, starts the run and emits the worker events.
func (r *Relay) source(ctx context.Context, up client.Upload) <-chan chunk {
	out := make(chan chunk)
	send := func(c chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		if _, err := r.worker.Health(ctx); err != nil {
			ctx.Logger().Errorf("GPU server connection test failed: %s", err)
			send(chunk{err: errUnreachable})
			return
		}

		resp, err := r.worker.RunPipeline(ctx, up)
		if err != nil {
			send(chunk{err: err})
			return
		}
		defer resp.Body.Close()

		ctx = context.WithJobID(ctx, resp.JobID)
		if resp.JobID != "" {
			if err := r.owners.Record(ctx, resp.JobID, up.UserID); err != nil {
				ctx.Logger().Errorf("cannot record job owner: %s", err)
			}
		}
		ctx.Logger().Info("starting to stream response from GPU server")

		dec := events.NewDecoder(resp.Body)
		count, finished := 0, false
		for {
			evt, err := dec.Next()
			if err == io.EOF && !finished {
				ctx.Logger().Warnf("stream ended after %d events without %s", count, events.Sentinel)
				send(chunk{err: streamError{errTruncated}})
				return
			}
			if err == io.EOF {
				ctx.Logger().Infof("streaming completed, %d events relayed", count)
				return
			}
			if err != nil {
				send(chunk{err: streamError{err}})
				return
			}
			count++
			finished = finished || evt.Last()
			if !send(chunk{event: evt}) {
				return
			}
		}
	}()
	return out
}

// failure maps a class of source failures to the event sent in its place
type failure struct {
	name  string
	match func(error) bool
	event func(error) events.Event
}

var failures = []failure{
	{
		name:  "unreachable",
		match: func(err error) bool { return err == errUnreachable },
		event: func(error) events.Event { return events.Errorf("ERROR:", "%s", errUnreachable) },
	},
	{
		name: "worker status",
		match: func(err error) bool {
			return errors.As(err, &client.ErrStatus{})
		},
		event: func(err error) events.Event {
			var st client.ErrStatus
			errors.As(err, &st)
			return events.Errorf(fmt.Sprintf("GPU server error (%d):", st.Code), "%s", st.Message)
		},
	},
	{
		name:  "connect timeout",
		match: isConnectTimeout,
		event: func(error) events.Event { return events.Errorf("ERROR:", "GPU server connection timeout") },
	},
	{
		name:  "connection refused",
		match: isConnectFailure,
		event: func(err error) events.Event { return events.Errorf("ERROR:", "Cannot connect to GPU server: %s", errors.Cause(err)) },
	},
	{
		name:  "read timeout",
		match: isTimeout,
		event: func(error) events.Event { return events.Errorf("ERROR:", "GPU server read timeout") },
	},
	{
		name: "stream interrupted",
		match: func(err error) bool {
			return errors.As(err, &streamError{})
		},
		event: func(err error) events.Event { return events.Errorf("STREAMING ERROR:", "%s", errors.Cause(err)) },
	},
	{
		name:  "other",
		match: func(error) bool { return true },
		event: func(err error) events.Event { return events.Errorf("ERROR:", "%s", errors.Cause(err)) },
	},
}

// classify returns the failure class of err and the event replacing it
func classify(err error) (string, events.Event) {
	for _, f := range failures {
		if f.match(err) {
			return f.name, f.event(err)
		}
	}
	return "", events.Errorf("ERROR:", "%s", err)
}

func isConnectTimeout(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial" && opErr.Timeout()
}

func isConnectFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// adapt turns the source failure into a single synthetic event.
func adapt(ctx context.Context, in <-chan chunk) <-chan events.Event {
	out := make(chan events.Event)
	go func() {
		defer close(out)
		for c := range in {
			evt := c.event
			if c.err != nil {
				var class string
				class, evt = classify(c.err)
				ctx.Logger().Errorf("relay failure (%s): %s", class, c.err)
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				// drain the source so it can stop
				for range in {
				}
				return
			}
		}
	}()
	return out
}

// sink frames events for the caller. The sentinel frame is always the last one sent.
func sink(ctx context.Context, in <-chan events.Event, out chan<- []byte) {
	finished := false
	send := func(b []byte) {
		select {
		case out <- b:
		case <-ctx.Done():
		}
	}
	for evt := range in {
		if evt.Text == "" {
			continue
		}
		if evt.Last() {
			finished = true
		}
		send(events.Frame(evt.Text))
	}
	if !finished {
		send(events.Frame(events.Finished().Text))
	}
}
