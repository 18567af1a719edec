// NORA local - local execution agent for Google Home.
//
// This is the main entry point of the agent. It exposes the configured
// devices to Google Home controllers on the local network: controllers
// discover the agent over UDP and send commands straight to it over HTTP,
// without a round trip through the cloud. Device state is bridged to the
// rest of the installation over MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/nora-local/migrations"

	"github.com/nerrad567/nora-local/internal/adapter"
	"github.com/nerrad567/nora-local/internal/api"
	"github.com/nerrad567/nora-local/internal/audit"
	"github.com/nerrad567/nora-local/internal/infrastructure/config"
	"github.com/nerrad567/nora-local/internal/infrastructure/database"
	"github.com/nerrad567/nora-local/internal/infrastructure/influxdb"
	"github.com/nerrad567/nora-local/internal/infrastructure/logging"
	"github.com/nerrad567/nora-local/internal/infrastructure/mqtt"
	"github.com/nerrad567/nora-local/internal/localexec"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// CLI is the command line of the agent.
type CLI struct {
	Config  string           `short:"c" help:"Path to the configuration file." default:"${default_config}" env:"NORA_LOCAL_CONFIG" type:"path"`
	Version kong.VersionFlag `help:"Print version information and exit."`
}

func main() {
	var cli CLI
	kong.Parse(&cli, kongOptions()...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cli.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func kongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("noralocal"),
		kong.Description("Local execution agent for Google Home devices."),
		kong.UsageOnError(),
		kong.Vars{
			"default_config": defaultConfigPath,
			"version":        fmt.Sprintf("noralocal %s (commit %s, built %s)", version, commit, date),
		},
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting NORA local",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.FromSettings(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	auditRepo := audit.NewSQLiteRepository(db.DB)

	opts := adapter.Options{
		Topics: mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		Logger: log.Component("adapter"),
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		opts.Bus = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = connectInfluxDB(ctx, cfg.InfluxDB, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		opts.Telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// The recorder outlives the adapters so commands answered during
	// shutdown are still written.
	var recorder *audit.Recorder
	recorderDone := make(chan struct{})
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	if cfg.LocalExecution.Enabled && cfg.LocalExecution.Audit {
		recorder = audit.NewRecorder(auditRepo, audit.DefaultQueueSize)
		recorder.SetLogger(log.Component("audit"))
		go func() {
			recorder.Run(recorderCtx)
			close(recorderDone)
		}()
	} else {
		close(recorderDone)
	}
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	var service *localexec.Service
	if cfg.LocalExecution.Enabled {
		service = newLocalExecution(cfg.LocalExecution, log, commandObserver(recorder, influxClient))
		opts.Registrar = service
		log.Info("local execution enabled",
			"proxy_id", service.Identity().String(),
			"discovery_port", service.Ports().Discovery,
			"command_port", service.Ports().Command,
		)
	} else {
		log.Info("local execution disabled")
	}

	adapters, err := adapter.FromConfig(cfg.Devices, opts)
	if err != nil {
		return fmt.Errorf("creating devices: %w", err)
	}
	log.Info("devices configured", "count", len(adapters))

	if cfg.API.Enabled {
		server, err := startAPI(ctx, cfg.API, log, service, auditRepo, mqttClient, db)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		g.Go(func() error {
			if err := a.Run(gctx); err != nil {
				return fmt.Errorf("device %s: %w", a.ID(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	log.Info("NORA local stopped")
	return nil
}

func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix(),
	)
	return client, nil
}

func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

func newLocalExecution(cfg config.LocalExecutionConfig, log *logging.Logger, observer localexec.CommandObserver) *localexec.Service {
	opts := []localexec.Option{
		localexec.WithLogger(log.Component("localexec")),
		localexec.WithHost(cfg.Host),
		localexec.WithPorts(localexec.Ports{
			Discovery: cfg.DiscoveryPort,
			Reply:     cfg.ReplyPort,
			Command:   cfg.CommandPort,
		}),
		localexec.WithCommandTimeout(cfg.CommandTimeout),
	}
	if cfg.GracePeriod > 0 {
		opts = append(opts, localexec.WithGracePeriod(cfg.GracePeriod))
	}
	if observer != nil {
		opts = append(opts, localexec.WithCommandObserver(observer))
	}
	return localexec.New(opts...)
}

// commandObserver fans a local command out to the audit log and telemetry.
// It returns nil when neither is configured.
func commandObserver(recorder *audit.Recorder, influxClient *influxdb.Client) localexec.CommandObserver {
	if recorder == nil && influxClient == nil {
		return nil
	}
	return func(ctx context.Context, e localexec.Execution) {
		if recorder != nil {
			recorder.Observe(ctx, e)
		}
		if influxClient != nil && e.Found {
			influxClient.WriteLocalCommand(e.DeviceID, e.Command, e.Online, e.Duration)
		}
	}
}

func startAPI(ctx context.Context, cfg config.APIConfig, log *logging.Logger, service *localexec.Service,
	auditRepo audit.Repository, mqttClient *mqtt.Client, db *database.DB,
) (*api.Server, error) {
	deps := api.Deps{
		Config:  cfg,
		Logger:  log.Component("api"),
		Audit:   auditRepo,
		DB:      db,
		Version: version,
	}
	if service != nil {
		deps.LocalExec = service
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}

	server, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return server, nil
}

func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
