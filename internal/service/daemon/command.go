package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/meter"
	"github.com/martinriedel/smartmeter/internal/mqtt"
	"github.com/martinriedel/smartmeter/internal/sml"
)

// Options are inputs accepted by the daemon entry point.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// SerialPort provides an optional serial device override.
	SerialPort string
	// Broker provides an optional broker URL override.
	Broker string
}

// readingBufferSize decouples the serial reader from broker latency. The
// meter transmits roughly once per second, so a small buffer is plenty.
const readingBufferSize = 16

// ErrNoBroker indicates missing broker configuration.
var ErrNoBroker = errors.New("no mqtt broker configured")

// Run starts the bridge and blocks until the context is canceled or the
// serial stream ends. Loads configuration first, then applies overrides.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smartmeter-daemon")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(cfg, opts)
	configureLogger(cfg.Log)

	if cfg.MQTT.Broker == "" {
		return ErrNoBroker
	}

	source, err := meter.OpenSerial(cfg.Serial.Port, cfg.Serial.BaudRate)
	if err != nil {
		return err
	}

	publisher, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		_ = source.Close()
		return err
	}

	defer publisher.Close(ctx)

	logger.InfoKV(ctx, "Bridge started",
		"port", cfg.Serial.Port, "baud_rate", cfg.Serial.BaudRate,
		"broker", cfg.MQTT.Broker, "topic_prefix", cfg.MQTT.TopicPrefix)

	reader := meter.NewReader(source)
	readings := make(chan sml.Reading, readingBufferSize)

	// The reader owns the channel: it closes it when the stream ends so the
	// publish loop drains the tail instead of blocking forever.
	readerDone := make(chan error, 1)

	go func() {
		defer close(readings)

		readerDone <- reader.Run(ctx, readings)
	}()

	if err := publish(ctx, readings, publisher); err != nil {
		return err
	}

	if err := <-readerDone; err != nil {
		return err
	}

	logger.Info(ctx, "Bridge stopped")

	return nil
}

// applyOverrides lets command line flags win over the settings file.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.SerialPort != "" {
		cfg.Serial.Port = opts.SerialPort
	}

	if opts.Broker != "" {
		cfg.MQTT.Broker = opts.Broker
	}
}

// configureLogger reshapes the global logger from the log section: level
// always, file tee only when a path is configured.
func configureLogger(cfg config.Log) {
	level, _ := logger.ParseLogLevel(cfg.Level)

	if cfg.File != "" {
		logger.SetLogger(logger.NewWithFile(level, cfg.File))
		return
	}

	logger.SetLevel(level)
}
