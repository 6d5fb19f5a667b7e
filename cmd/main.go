package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dsmr-mqtt-bridge/internal/config"
	"dsmr-mqtt-bridge/internal/dsmr"
	"dsmr-mqtt-bridge/internal/errors"
	"dsmr-mqtt-bridge/internal/homeassistant"
	"dsmr-mqtt-bridge/internal/logger"
	"dsmr-mqtt-bridge/internal/sensor"
	"dsmr-mqtt-bridge/internal/supervisor"
)

// stopTimeout bounds how long shutdown waits for the supervisor to finish
const stopTimeout = 10 * time.Second

// Application wires the bridge together: config, MQTT publisher, sensor
// set, throttled dispatcher and the connection supervisor.
type Application struct {
	config     *config.Config
	log        *logger.Logger
	publisher  *homeassistant.Publisher
	sensors    []*sensor.MeterSensor
	dispatcher *sensor.Dispatcher
	supervisor *supervisor.Supervisor
	stopBus    *supervisor.StopBus

	cancel context.CancelFunc
	done   chan struct{}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	// Initialize logging; this also routes output to the configured file
	appLog := logger.NewLogger(&cfg.Logging)
	appLog.Info("Logging initialized with level: %s", cfg.Logging.Level)

	// Create publisher for Home Assistant
	publisher := homeassistant.NewPublisher(&cfg.MQTT, &cfg.HomeAssistant)

	// Build the sensor set for the configured meter
	conn := cfg.Connection
	sensors := sensor.DefaultSensors(conn.DSMRVersion, conn.Precision, conn.SerialID, conn.SerialIDGas)
	logger.LogInfo("✅ %d sensors registered for DSMR version %s", len(sensors), conn.DSMRVersion)

	dispatcher := sensor.NewDispatcher(
		time.Duration(conn.TimeBetweenUpdates)*time.Second, sensors, publisher)

	app := &Application{
		config:     cfg,
		log:        appLog,
		publisher:  publisher,
		sensors:    sensors,
		dispatcher: dispatcher,
		stopBus:    supervisor.NewStopBus(),
		done:       make(chan struct{}),
	}
	return app, nil
}

// Start starts the application
func (app *Application) Start(ctx context.Context) error {
	app.log.Info("🚀 Starting DSMR MQTT Bridge...")

	ctx, app.cancel = context.WithCancel(ctx)

	// Connect publisher
	if err := app.publisher.Connect(ctx); err != nil {
		return fmt.Errorf("error connecting publisher: %w", err)
	}

	// Publish discovery configurations for Home Assistant
	if err := app.publisher.PublishAllDiscoveries(ctx, app.sensors); err != nil {
		logger.LogError("Error publishing discovery configs: %v", err)
	}

	// Publish online status
	if err := app.publisher.PublishStatusOnline(ctx); err != nil {
		logger.LogError("Error publishing online status: %v", err)
	} else {
		app.publisher.PublishDiagnostic(ctx, errors.CodeOK, "DSMR MQTT Bridge started successfully")
	}

	// The factory binds telegram delivery to the dispatcher, so the
	// supervisor only sees connection lifecycle.
	connCfg := dsmr.ConnectionConfig{
		Device:  app.config.Connection.Device,
		Host:    app.config.Connection.Host,
		Port:    app.config.Connection.Port,
		Version: app.config.Connection.DSMRVersion,
	}
	factory := func(ctx context.Context) (supervisor.TelegramSource, error) {
		return dsmr.Open(ctx, connCfg, func(t dsmr.Telegram) {
			app.dispatcher.Publish(ctx, t)
		})
	}

	app.supervisor = supervisor.New(factory, app.dispatcher, app.publisher, app.stopBus,
		time.Duration(app.config.Connection.ReconnectInterval)*time.Second)

	// Runs for the life of the process; only Stop ends it
	go func() {
		defer close(app.done)
		app.supervisor.Run(ctx)
	}()

	app.log.Info("✅ DSMR MQTT Bridge started (meter: %s)", connCfg.Endpoint())
	return nil
}

// Stop stops the application
func (app *Application) Stop() {
	app.log.Info("🛑 Stopping DSMR MQTT Bridge...")

	// Close the transport early through the global-stop hook, then cancel
	// the supervisor and wait for orderly teardown.
	app.stopBus.Trigger()
	app.cancel()

	select {
	case <-app.done:
	case <-time.After(stopTimeout):
		logger.LogWarn("Supervisor did not stop within %v", stopTimeout)
	}

	// Publish offline status before disconnecting
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.publisher.PublishStatusOffline(ctx); err != nil {
		logger.LogError("Error publishing offline status: %v", err)
	} else {
		app.publisher.PublishDiagnostic(ctx, errors.CodeOK, "DSMR MQTT Bridge stopped gracefully")
	}

	app.publisher.Disconnect()

	app.log.Info("✅ DSMR MQTT Bridge stopped")
}

func main() {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT and SIGTERM for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Parse command line arguments
	configPath := ""
	for _, arg := range os.Args[1:] {
		if arg == "--help" || arg == "-h" {
			fmt.Printf("Usage: %s [config_path]\n", os.Args[0])
			fmt.Printf("  config_path: Path to configuration file (optional)\n")
			return
		}
		configPath = arg
	}

	// Create application
	app, err := NewApplication(configPath)
	if err != nil {
		logger.LogStartup("Application creation error: %v", err)
		os.Exit(1)
	}

	// Start application
	if err := app.Start(ctx); err != nil {
		logger.LogError("Application start error: %v", err)
		os.Exit(1)
	}

	// Wait for stop signal
	<-sigChan
	logger.LogInfo("📢 Stop signal received...")

	// Stop application
	app.Stop()
}
