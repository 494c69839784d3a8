package broker

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"nereus/pkg/util/config"
	"nereus/pkg/util/context"

	"github.com/pkg/errors"
)

const (
	envBrokerType = "BROKER_TYPE"
)

var (
	factories = make(map[Type]func(context.Context, interface{}) (Broker, error))
	configs   = make(map[Type]interface{})
	mutex     = &sync.Mutex{}
)

func register(t Type, f func(context.Context, interface{}) (Broker, error), c interface{}) {
	mutex.Lock()
	defer mutex.Unlock()
	factories[t] = f
	configs[t] = c
}

// Type is a string designing the implementation of Broker interface
type Type string

// EventType is the type of a job lifecycle event
type EventType string

const (
	TypeStarted   EventType = "started"
	TypeCompleted EventType = "completed"
	TypeFailed    EventType = "failed"
	TypeDeleted   EventType = "deleted"
)

// Event is a job lifecycle event published to the broker.
type Event struct {
	Type    EventType `json:"type"`
	JobID   string    `json:"job_id"`
	UserID  string    `json:"user_id,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s for job %s", e.Type, e.JobID)
}

// RoutingKey returns the routing key events of this type are published with
func (e Event) RoutingKey() string {
	return "job." + string(e.Type)
}

// NewEvent returns a new Event for the job and user carried by ctx
func NewEvent(ctx context.Context, typ EventType, message string) Event {
	return Event{
		Type:    typ,
		JobID:   ctx.JobID(),
		UserID:  ctx.UserID(),
		Message: message,
		Time:    time.Now().UTC(),
	}
}

// Broker publishes job lifecycle events.
type Broker interface {
	// Publish publishes the given event.
	Publish(ctx context.Context, evt Event) error

	// Close closes all connections.
	Close() error
}

// NewFromConfig returns a new instance of Broker based on configuration from config file and/or env variables.
// Without any type configured, a broker dropping every event is returned.
func NewFromConfig(ctx context.Context, configKey string) (Broker, error) {
	configTypeKey := "type"
	if configKey != "" {
		configTypeKey = configKey + ".type"
	}
	// Get broker type
	var t string
	if typ := config.Get(configTypeKey); typ != nil {
		asString, isString := typ.(string)
		if !isString {
			return nil, errors.Errorf("config entry with key %s is not a string", configTypeKey)
		}
		t = asString
	}
	if env := os.Getenv(envBrokerType); env != "" {
		t = env
	}
	if t == "" {
		t = string(NoopType)
	}

	typ := Type(strings.ToLower(t))
	mutex.Lock()
	v, ok := configs[typ]
	mutex.Unlock()
	if !ok {
		return nil, errors.Errorf("unknown broker type %s", typ)
	}
	if err := config.Unmarshal(configKey, v); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal broker config")
	}

	return New(ctx, typ, v)
}

// NewFromEnv returns a new instance of Broker based on env variables
func NewFromEnv(ctx context.Context) (Broker, error) {
	//NewFromConfig fallbacks to env when necessary
	return NewFromConfig(ctx, "")
}

// New returns a new instance of Broker based on given configuration struct
func New(ctx context.Context, t Type, c interface{}) (Broker, error) {
	mutex.Lock()
	f, ok := factories[t]
	mutex.Unlock()
	if !ok {
		return nil, errors.Errorf("unknown broker type %s", t)
	}

	return f(ctx, c)
}

// Notify publishes an event of the given type for the job carried by ctx.
// Failures are logged, a broken broker never fails a job.
func Notify(ctx context.Context, b Broker, typ EventType, message string) {
	if b == nil {
		return
	}
	evt := NewEvent(ctx, typ, message)
	if err := b.Publish(ctx, evt); err != nil {
		ctx.Logger().Warnf("cannot publish event %s: %s", evt, err)
	}
}
