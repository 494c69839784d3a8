package main

import (
	gocontext "context"
	"os"
	"os/signal"
	"syscall"

	"nereus/pkg/auth"
	"nereus/pkg/client"
	"nereus/pkg/ownership"
	"nereus/pkg/relay"
	"nereus/pkg/util/config"
	"nereus/pkg/util/context"
	"nereus/pkg/util/server"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is the relay configuration
type Config struct {
	Port      string           `json:"port" env:"PORT"`
	LogLevel  string           `json:"log_level" env:"LOG_LEVEL"`
	BodyLimit string           `json:"body_limit" env:"BODY_LIMIT"`
	WorkerURL string           `json:"worker_url" env:"WORKER_URL"`
	JWT       auth.Config      `json:"jwt"`
	Timeouts  client.Timeouts  `json:"timeouts"`
	Ownership ownership.Config `json:"ownership"`
}

// DefaultConfig returns the relay configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Port:      "8000",
		LogLevel:  "info",
		BodyLimit: "2G",
		WorkerURL: "http://localhost:8090",
		JWT:       auth.DefaultConfig(),
		Timeouts:  client.DefaultTimeouts(),
		Ownership: ownership.DefaultConfig(),
	}
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:           "nereus-relay",
		Short:         "nereus-relay authenticates callers and relays their pipeline runs to a worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := run(ctx, configFile); err != nil {
				ctx.Logger().Error(err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (json or yaml), defaults to $"+config.EnvConfigFile)
	return cmd
}

func run(ctx context.Context, configFile string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		ctx.Logger().Warnf("cannot load .env file: %s", err)
	}
	conf := DefaultConfig()
	if err := config.Load(configFile, "relay", &conf); err != nil {
		return errors.Wrap(err, "cannot load configuration")
	}
	if err := context.SetLogLevel(conf.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %s", conf.LogLevel)
	}

	v, err := auth.NewVerifier(conf.JWT)
	if err != nil {
		return errors.Wrap(err, "failed to instantiate token verifier")
	}
	worker, err := client.NewClient(conf.WorkerURL, client.WithTimeouts(conf.Timeouts))
	if err != nil {
		return errors.Wrap(err, "failed to instantiate worker client")
	}
	owners, err := ownership.New(ctx, conf.Ownership)
	if err != nil {
		return errors.Wrap(err, "failed to instantiate ownership store")
	}
	defer owners.Close()

	h := handlers{relay: relay.New(worker, v, owners)}
	e := server.New(conf.BodyLimit)
	h.routes(e)

	sigCtx, stop := signal.NotifyContext(gocontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.FromContext(sigCtx)
	ctx.Logger().Infof("relaying to worker %s", conf.WorkerURL)
	return server.Run(ctx, e, conf.Port)
}

const healthPath = "/pipeline/health"

func (h handlers) routes(e *echo.Echo) {
	e.Add(client.RunPipelineMethod, client.RunPipelinePath, h.RunPipeline)
	e.Add(client.DownloadMethod, client.DownloadPath, h.Download)
	e.Add(client.FilesMethod, client.FilesPath, h.Files)
	e.GET(healthPath, h.Health)
}

type handlers struct {
	relay *relay.Relay
}
