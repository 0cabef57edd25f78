// HomeSync node agent
//
// This is the entry point for a HomeSync proof-of-concept node: an energy
// meter with one relay output, attached to the HomeSync broker over MQTT.
// It publishes measurements, applies relay commands and reports presence.
//
// The process exits non-zero when the network link cannot be brought up at boot and
// relies on its supervisor (systemd, a container runtime) to restart it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/homesync/node-agent/internal/actuator"
	"github.com/homesync/node-agent/internal/agent"
	"github.com/homesync/node-agent/internal/api"
	"github.com/homesync/node-agent/internal/command"
	"github.com/homesync/node-agent/internal/connectivity"
	"github.com/homesync/node-agent/internal/diag"
	"github.com/homesync/node-agent/internal/gpio"
	"github.com/homesync/node-agent/internal/infrastructure/config"
	"github.com/homesync/node-agent/internal/infrastructure/database"
	"github.com/homesync/node-agent/internal/infrastructure/influxdb"
	"github.com/homesync/node-agent/internal/infrastructure/logging"
	"github.com/homesync/node-agent/internal/infrastructure/metrics"
	"github.com/homesync/node-agent/internal/infrastructure/mqtt"
	"github.com/homesync/node-agent/internal/journal"
	"github.com/homesync/node-agent/internal/link"
	"github.com/homesync/node-agent/internal/sensor"
	"github.com/homesync/node-agent/internal/telemetry"
	"github.com/homesync/node-agent/migrations"
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

// journalRetention is how long diagnostics are kept across boots.
const journalRetention = 7 * 24 * time.Hour

// hardwareIDPaths are tried in order for a stable client id suffix.
var hardwareIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the node together and drives the control loop until ctx is
// cancelled or the link is lost for good.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting HomeSync node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	promMetrics := metrics.New()
	recorder := diag.Fanout{diag.LogRecorder{Logger: log}, promMetrics}

	// Infrastructure reported on /healthz
	checks := make(map[string]api.HealthChecker)

	// Local journal
	var jr *journal.Journal
	if cfg.Database.Enabled {
		var (
			db      *database.DB
			closeDB func()
		)
		jr, db, closeDB, err = openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		recorder = append(recorder, jr)
		checks["database"] = db
	} else {
		log.Info("journal disabled")
	}

	// Telemetry archive
	var archive *influxdb.Archive
	if cfg.InfluxDB.Enabled {
		archive, err = influxdb.Connect(cfg.InfluxDB, influxdb.Deps{
			DeviceID: cfg.Device.ID,
			Project:  cfg.Device.Project,
			Recorder: recorder,
		})
		if err != nil {
			// The node keeps controlling the relay without its archive.
			log.Warn("InfluxDB unavailable, archive disabled", "error", err)
		} else {
			defer func() {
				log.Info("closing InfluxDB archive")
				if closeErr := archive.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			promMetrics.RegisterArchive(archive)
			checks["influxdb"] = archive
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Relay output, driven OFF before any networking.
	pin, err := openPin(cfg.Actuator)
	if err != nil {
		return fmt.Errorf("opening relay output: %w", err)
	}
	defer func() {
		if closeErr := pin.Close(); closeErr != nil {
			log.Error("error releasing relay output", "error", closeErr)
		}
	}()

	// MQTT session
	clientID := cfg.MQTT.Broker.ClientID
	if clientID == "" {
		clientID = mqtt.ClientID(cfg.Device.ID, readHardwareID(hardwareIDPaths))
	}
	session := mqtt.New(cfg.MQTT, clientID)
	session.SetLogger(log)
	session.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	topics := session.Topics()
	checks["mqtt"] = session
	log.Info("MQTT session configured",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", clientID,
		"tls", cfg.MQTT.Broker.TLS,
	)

	conn := connectivity.NewManager(
		buildLink(cfg),
		session,
		connectivity.Config{
			ReconnectDelay: cfg.GetReconnectDelay(),
			AttemptTimeout: cfg.GetConnectTimeout(),
			CommandTopic:   topics.Command(),
			StatusTopic:    topics.Status(),
			OnlinePayload:  mqtt.PresenceOnline,
		},
		recorder,
		log,
	)
	conn.OnTransition(func(from, to connectivity.State) {
		log.Info("connection state changed", "from", from.String(), "to", to.String())
	})

	publisher := telemetry.NewPublisher(session, topics.TelemetryRoot(), recorder)

	relay := actuator.New(pin, publisher, func() bool {
		return conn.State() == connectivity.Connected
	}, recorder)
	relay.OnChange(func(on bool, at time.Duration) {
		log.Info("relay set", "on", on, "uptime_ms", at.Milliseconds())
	})
	if jr != nil {
		relay.OnChange(jr.RecordRelay)
	}
	if archive != nil {
		relay.OnChange(archive.WriteRelay)
	}
	relay.Set(false, 0)

	deps := agent.Deps{
		Connectivity: conn,
		Inbox:        session,
		Interpreter:  command.NewInterpreter(topics.Command()),
		Relay:        relay,
		Publisher:    publisher,
		Sensor:       sensor.NewSimulated(cfg.Sensor.FaultRate, uint64(time.Now().UnixNano())), // #nosec G115 -- seed only
		Recorder:     recorder,
		Logger:       log,
	}
	if archive != nil {
		deps.Archive = archive
	}

	node, err := agent.New(agent.Config{
		DeviceID:          cfg.Device.ID,
		TelemetryInterval: cfg.GetTelemetryInterval(),
		Channels:          cfg.Telemetry.Channels,
		LoopPeriod:        cfg.GetLoopPeriod(),
	}, deps)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}
	promMetrics.SetStatusSource(node.Status)

	// Status server
	if cfg.Status.Enabled {
		apiDeps := api.Deps{
			Config:  cfg.Status,
			Logger:  log,
			Status:  node,
			Metrics: promMetrics.Handler(),
			Checks:  checks,
			Version: version,
		}
		if jr != nil {
			apiDeps.Journal = jr
		}
		srv, srvErr := api.New(apiDeps)
		if srvErr != nil {
			return fmt.Errorf("creating status server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting status server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete",
		"telemetry_interval", cfg.GetTelemetryInterval().String(),
		"channels", strings.Join(cfg.Telemetry.Channels, ","),
	)

	if err := node.Run(ctx); err != nil {
		if errors.Is(err, connectivity.ErrLinkUnavailable) {
			log.Error("network link unavailable, exiting for restart", "error", err)
		}
		return fmt.Errorf("control loop: %w", err)
	}

	log.Info("HomeSync node stopped")
	return nil
}

// openJournal opens the SQLite database, applies migrations and registers
// this boot. The returned DB is for health checks only; close it with the
// returned func.
func openJournal(ctx context.Context, cfg *config.Config, log *logging.Logger) (*journal.Journal, *database.DB, func(), error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	closeDB := func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	jr := journal.New(db.DB, journal.NewBootID(), log)
	if err := jr.StartBoot(ctx, cfg.Device.ID, version); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("registering boot: %w", err)
	}
	if n, err := jr.Prune(ctx, journalRetention); err != nil {
		log.Warn("pruning journal failed", "error", err)
	} else if n > 0 {
		log.Info("journal pruned", "rows", n)
	}

	log.Info("journal ready", "path", db.Path(), "boot_id", jr.BootID())
	return jr, db, closeDB, nil
}

// openPin opens the configured relay output.
func openPin(cfg config.ActuatorConfig) (gpio.Pin, error) {
	switch cfg.Driver {
	case "sysfs":
		return gpio.OpenSysfs(cfg.SysfsRoot, cfg.Pin, cfg.ActiveLow)
	case "memory", "":
		return gpio.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported actuator driver %q", cfg.Driver)
	}
}

// buildLink returns a wireless link when an SSID is configured, the
// interface watcher when only an interface is, and otherwise a link that is
// always up.
func buildLink(cfg *config.Config) link.Link {
	switch {
	case cfg.Network.Interface == "":
		return link.Static{}
	case cfg.Network.SSID != "":
		return link.NewWireless(cfg.Network.Interface, cfg.Network.SSID, cfg.Network.Password,
			cfg.GetLinkTimeout(), cfg.GetLinkPollInterval())
	default:
		return link.NewInterface(cfg.Network.Interface, cfg.GetLinkTimeout(), cfg.GetLinkPollInterval())
	}
}

// readHardwareID returns the first non-empty machine id found, or "".
func readHardwareID(paths []string) string {
	for _, p := range paths {
		b, err := os.ReadFile(p) // #nosec G304 -- fixed system paths
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	}
	return ""
}

// getConfigPath returns the configuration file path.
// HOMESYNC_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("HOMESYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
