package broker

import (
	"encoding/json"
	"fmt"
	"sync"

	"nereus/pkg/api"
	"nereus/pkg/util/context"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const (
	// RabbitMQType Broker type RabbitMQ
	RabbitMQType Type = "rabbitmq"
)

func init() {
	f := func(ctx context.Context, c interface{}) (Broker, error) {
		asRabbitMQConf, isRabbitMQConf := c.(*RabbitMQConfig)
		if !isRabbitMQConf {
			return nil, errors.Errorf("given configuration struct is not type %v", RabbitMQConfig{})
		}
		return NewRabbitMQBroker(ctx, *asRabbitMQConf)
	}
	register(RabbitMQType, f, &RabbitMQConfig{Exchange: "nereus.ex.jobs"})
}

type rabbitmq struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	config RabbitMQConfig
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// RabbitMQConfig is configuration for rabbitmq broker implementation
type RabbitMQConfig struct {
	User     string `json:"user" env:"BROKER_RABBITMQ_USER"`
	Password string `json:"password" env:"BROKER_RABBITMQ_PASSWORD"`
	URI      string `json:"uri" env:"BROKER_RABBITMQ_URI"`
	Exchange string `json:"exchange" env:"BROKER_RABBITMQ_EXCHANGE"`
}

// URL returns the amqp url of the broker, with the password masked if mask is true
func (conf RabbitMQConfig) URL(mask bool) string {
	password := conf.Password
	if mask && password != "" {
		password = "*****"
	}
	return fmt.Sprintf("amqp://%s:%s@%s", conf.User, password, conf.URI)
}

//NewRabbitMQBroker returns a Broker implementation based on RabbitMQ.
//Events are published to a durable topic exchange with routing key job.<type>.
func NewRabbitMQBroker(ctx context.Context, conf RabbitMQConfig) (Broker, error) {
	if conf.URI == "" {
		return nil, errors.New("rabbitmq uri is not set")
	}
	ctx.Logger().Infof("connecting to rabbitmq with url '%s'", conf.URL(true))
	conn, err := amqp.Dial(conf.URL(false))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to rabbitmq with url '%s'", conf.URL(true))
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "cannot open channel to rabbitmq")
	}
	err = ch.ExchangeDeclare(
		conf.Exchange, // name
		"topic",       // kind
		true,          // durable
		false,         // delete when unused
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "cannot declare exchange %s", conf.Exchange)
	}
	return &rabbitmq{
		conn:   conn,
		ch:     ch,
		config: conf,
	}, nil
}

func (q *rabbitmq) Publish(ctx context.Context, evt Event) error {
	ctx.Logger().Tracef("publishing event %s to exchange %s", evt, q.config.Exchange)
	//Headers
	headers := amqp.Table{
		api.HeaderJobID:  evt.JobID,
		api.HeaderUserID: evt.UserID,
		api.HeaderType:   string(evt.Type),
	}

	// Marshal body
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal event %s", evt)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Publish(
		q.config.Exchange, // exchange
		evt.RoutingKey(),  // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.Time,
			Body:         body,
			Headers:      headers,
		})
}

func (q *rabbitmq) Close() error {
	if err := q.ch.Close(); err != nil {
		return err
	}
	if err := q.conn.Close(); err != nil {
		return err
	}
	return nil
}
