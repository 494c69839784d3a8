package broker

import "nereus/pkg/util/context"

const (
	// NoopType Broker type dropping every event
	NoopType Type = "none"
)

func init() {
	register(NoopType, func(ctx context.Context, c interface{}) (Broker, error) {
		return NewNoopBroker(), nil
	}, &struct{}{})
}

// NewNoopBroker returns a Broker that only logs events.
func NewNoopBroker() Broker {
	return noop{}
}

type noop struct{}

func (noop) Publish(ctx context.Context, evt Event) error {
	ctx.Logger().Debugf("dropping event %s", evt)
	return nil
}

func (noop) Close() error {
	return nil
}
