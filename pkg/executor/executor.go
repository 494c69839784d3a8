package executor

import (
	"os"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/broker"
	"nereus/pkg/events"
	"nereus/pkg/store"
	"nereus/pkg/util/context"

	"github.com/pkg/errors"
)

// Policy is what happens to a running pipeline when the caller goes away
type Policy string

const (
	// PolicyContinue lets the pipeline run to completion
	PolicyContinue Policy = "continue"
	// PolicyKill kills the pipeline and marks the job as failed
	PolicyKill Policy = "kill"
)

// Config is the configuration of the pipeline executor
type Config struct {
	Script            string        `json:"script" env:"PIPELINE_SCRIPT"`
	Shell             string        `json:"shell" env:"PIPELINE_SHELL"`
	Dir               string        `json:"dir" env:"PIPELINE_DIR"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	OnDisconnect      Policy        `json:"on_disconnect" env:"ON_DISCONNECT"`
}

// DefaultConfig returns the executor configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Script:            "/app/run_pipeline.sh",
		Shell:             "bash",
		Dir:               "/app",
		HeartbeatInterval: 60 * time.Second,
		OnDisconnect:      PolicyContinue,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Script == "" {
		return errors.New("pipeline script is not set")
	}
	if c.Shell == "" {
		return errors.New("pipeline shell is not set")
	}
	if c.OnDisconnect != PolicyContinue && c.OnDisconnect != PolicyKill {
		return errors.Errorf("unknown disconnect policy %s", c.OnDisconnect)
	}
	return nil
}

// ScriptState describes the pipeline entry point
type ScriptState struct {
	Path       string
	Exists     bool
	Executable bool
}

// Executor runs the pipeline of a job.
type Executor interface {
	// Run starts the pipeline for the given job and returns its progress events.
	// The channel is closed after the events.Sentinel event.
	Run(ctx context.Context, job store.Job) <-chan events.Event

	// Script returns the state of the pipeline entry point
	Script() ScriptState
}

// New returns a new instance of Executor
func New(conf Config, s store.Store, b broker.Broker) (Executor, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid executor configuration")
	}
	if b == nil {
		b = broker.NewNoopBroker()
	}
	return &exec{
		conf:   conf,
		store:  s,
		broker: b,
	}, nil
}

type exec struct {
	conf   Config
	store  store.Store
	broker broker.Broker
}

func (e *exec) Script() ScriptState {
	st := ScriptState{Path: e.conf.Script}
	fi, err := os.Stat(e.conf.Script)
	if err != nil || fi.IsDir() {
		return st
	}
	st.Exists = true
	st.Executable = fi.Mode().Perm()&0111 != 0
	return st
}

// transition records the new job status and notifies the broker
func (e *exec) transition(ctx context.Context, job store.Job, status api.Status, message string) error {
	if err := e.store.Transition(ctx, job.ID, status, message); err != nil {
		return errors.Wrapf(err, "cannot mark job %s as %s", job.ID, status)
	}
	broker.Notify(ctx, e.broker, broker.EventType(status), message)
	return nil
}

// fail marks the job as failed, logging any error doing so
func (e *exec) fail(ctx context.Context, job store.Job, message string) {
	ctx.Logger().Error(message)
	if err := e.transition(ctx, job, api.StatusFailed, message); err != nil {
		ctx.Logger().Error(err)
	}
}

// emitter sends events to the caller until it goes away, then only logs them.
type emitter struct {
	ctx  context.Context
	out  chan<- events.Event
	gone bool
}

func (em *emitter) emit(e events.Event) {
	if !em.gone {
		select {
		case em.out <- e:
			return
		case <-em.ctx.Done():
			em.gone = true
			em.ctx.Logger().Warn("caller disconnected, events are no longer delivered")
		}
	}
	em.ctx.Logger().Debugf("undelivered event: %s", e)
}
