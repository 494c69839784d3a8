package client

import (
	"nereus/pkg/client"

	"github.com/caarlos0/env/v6"
)

// Options are the connection settings shared by all commands.
// Defaults come from env variables.
type Options struct {
	URL       string `env:"NEREUS_URL" envDefault:"http://127.0.0.1:8000"`
	WorkerURL string `env:"NEREUS_WORKER_URL" envDefault:"http://127.0.0.1:8090"`
	Token     string `env:"NEREUS_TOKEN"`
	// Direct sends relayed calls straight to the worker
	Direct bool
}

// DefaultOptions returns the options read from env variables
func DefaultOptions() Options {
	var o Options
	_ = env.Parse(&o)
	return o
}

// New returns a client for calls served by the relay, or by the worker if opts.Direct is set.
func New(opts Options) (client.Client, error) {
	if opts.Direct {
		return Worker(opts)
	}
	return client.NewClient(opts.URL, client.WithToken(opts.Token))
}

// Worker returns a client for calls only served by the worker
func Worker(opts Options) (client.Client, error) {
	return client.NewClient(opts.WorkerURL)
}
