package main

import (
	gocontext "context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nereus/pkg/broker"
	"nereus/pkg/client"
	"nereus/pkg/executor"
	"nereus/pkg/ingest"
	"nereus/pkg/registry"
	"nereus/pkg/store"
	"nereus/pkg/util/config"
	"nereus/pkg/util/context"
	"nereus/pkg/util/server"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config is the worker configuration
type Config struct {
	Port              string          `json:"port" env:"PORT"`
	WorkDir           string          `json:"work_dir" env:"WORK_DIR"`
	LogLevel          string          `json:"log_level" env:"LOG_LEVEL"`
	BodyLimit         string          `json:"body_limit" env:"BODY_LIMIT"`
	RetentionMaxAge   time.Duration   `json:"retention_max_age" env:"RETENTION_MAX_AGE"`
	RetentionInterval time.Duration   `json:"retention_interval" env:"RETENTION_INTERVAL"`
	Pipeline          executor.Config `json:"pipeline"`
}

// DefaultConfig returns the worker configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Port:              "8090",
		WorkDir:           "/app/work",
		LogLevel:          "info",
		BodyLimit:         "2G",
		RetentionInterval: time.Hour,
		Pipeline:          executor.DefaultConfig(),
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
		Use:           "nereus-worker",
		Short:         "nereus-worker runs the photogrammetry pipeline on uploaded archives",
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
	if err := config.Load(configFile, "worker", &conf); err != nil {
		return errors.Wrap(err, "cannot load configuration")
	}
	if err := context.SetLogLevel(conf.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %s", conf.LogLevel)
	}

	s, err := store.NewFSStore(conf.WorkDir)
	if err != nil {
		return errors.Wrap(err, "failed to instantiate store")
	}
	b, err := broker.NewFromConfig(ctx, "broker")
	if err != nil {
		return errors.Wrap(err, "failed to instantiate broker")
	}
	defer b.Close()
	exec, err := executor.New(conf.Pipeline, s, b)
	if err != nil {
		return errors.Wrap(err, "failed to instantiate executor")
	}

	h := handlers{
		store:    s,
		gateway:  ingest.NewGateway(s),
		exec:     exec,
		registry: registry.New(s),
		broker:   b,
	}
	e := server.New(conf.BodyLimit)
	h.routes(e)

	sigCtx, stop := signal.NotifyContext(gocontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.FromContext(sigCtx)

	st := exec.Script()
	ctx.Logger().Infof("work directory %s, pipeline script %s (exists: %t, executable: %t)", s.WorkRoot(), st.Path, st.Exists, st.Executable)

	if conf.RetentionMaxAge > 0 {
		go h.sweep(ctx, conf.RetentionMaxAge, conf.RetentionInterval)
	}
	return server.Run(ctx, e, conf.Port)
}

func (h handlers) routes(e *echo.Echo) {
	e.Add(client.RunPipelineMethod, client.RunPipelinePath, h.RunPipeline)
	e.Add(client.DownloadMethod, client.DownloadPath, h.Download)
	e.Add(client.DownloadFileMethod, client.DownloadFilePath, h.DownloadFile)
	e.Add(client.FilesMethod, client.FilesPath, h.Files)
	e.Add(client.JobsMethod, client.JobsPath, h.Jobs)
	e.Add(client.DeleteJobMethod, client.DeleteJobPath, h.DeleteJob)
	e.Add(client.HealthMethod, client.HealthPath, h.Health)
}

type handlers struct {
	store    store.Store
	gateway  ingest.Gateway
	exec     executor.Executor
	registry registry.Registry
	broker   broker.Broker
}
