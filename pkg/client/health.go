package client

import (
	"context"
	"net/http"

	"nereus/pkg/api"
)

const (
	// HealthMethod is http method used for endpoint Health
	HealthMethod = http.MethodGet
	// HealthPath is the path definition of the endpoint Health.
	HealthPath = "/health"
)

func (cli *client) Health(ctx context.Context) (api.Health, error) {
	resp, cancel, err := cli.do(ctx, HealthMethod, HealthPath, cli.timeouts.Health, false)
	if err != nil {
		return api.Health{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	var res api.Health
	if err := decode(resp, "health", &res); err != nil {
		return api.Health{}, err
	}
	return res, nil
}
