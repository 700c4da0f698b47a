package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/sml"
)

// Topic suffixes below the configured prefix.
const (
	importSuffix       = "import"
	exportSuffix       = "export"
	powerSuffix        = "power"
	stateSuffix        = "state"
	availabilitySuffix = "status"
)

// Availability payloads.
const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

const (
	// connectTimeout bounds the initial broker handshake.
	connectTimeout = 10 * time.Second
	// publishTimeout bounds each publish; the client buffers and retries
	// internally while reconnecting.
	publishTimeout = 5 * time.Second
	// disconnectQuiesceMillis lets in-flight messages drain on shutdown.
	disconnectQuiesceMillis = 250
)

var (
	// errBrokerRequired is returned when no broker URL is configured.
	errBrokerRequired = errors.New("mqtt broker must be provided")
	// errTimeout is returned when the broker does not acknowledge in time.
	errTimeout = errors.New("mqtt operation timed out")
)

// Publisher abstracts reading publication so the daemon loop can be tested
// without a broker.
type Publisher interface {
	PublishReading(ctx context.Context, reading sml.Reading) error
	Close(ctx context.Context)
}

// Client publishes readings through a paho MQTT connection.
type Client struct {
	client paho.Client
	topics topicSet
	qos    byte
}

// Connect dials the broker and announces availability. The underlying
// client reconnects automatically and re-announces on every reconnect.
func Connect(ctx context.Context, cfg config.MQTT) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errBrokerRequired
	}

	topics := topicsFor(cfg.TopicPrefix)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetWill(topics.availability, payloadOffline, cfg.QoS, true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.InfoKV(ctx, "Connected to MQTT broker", "broker", cfg.Broker)
		c.Publish(topics.availability, cfg.QoS, true, payloadOnline)
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.WarnKV(ctx, "Lost MQTT connection", "error", err)
	})

	client := paho.NewClient(opts)
	if err := wait(client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}

	return &Client{
		client: client,
		topics: topics,
		qos:    cfg.QoS,
	}, nil
}

// PublishReading sends every value the telegram carried to its own topic
// and refreshes the retained state document.
func (c *Client) PublishReading(_ context.Context, reading sml.Reading) error {
	if reading.HasImport {
		if err := c.publish(c.topics.importEnergy, formatValue(reading.ImportWh), false); err != nil {
			return err
		}
	}

	if reading.HasExport {
		if err := c.publish(c.topics.exportEnergy, formatValue(reading.ExportWh), false); err != nil {
			return err
		}
	}

	if reading.HasPower {
		if err := c.publish(c.topics.power, formatValue(reading.PowerW), false); err != nil {
			return err
		}
	}

	state, err := statePayload(reading)
	if err != nil {
		return err
	}

	return c.publish(c.topics.state, string(state), true)
}

// Close announces unavailability and disconnects.
func (c *Client) Close(_ context.Context) {
	_ = wait(c.client.Publish(c.topics.availability, c.qos, true, payloadOffline), publishTimeout)
	c.client.Disconnect(disconnectQuiesceMillis)
}

func (c *Client) publish(topic, payload string, retained bool) error {
	if err := wait(c.client.Publish(topic, c.qos, retained, payload), publishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// wait blocks on a paho token with a deadline.
func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTimeout
	}

	return token.Error()
}

// topicSet holds the fully qualified topics for one meter.
type topicSet struct {
	importEnergy string
	exportEnergy string
	power        string
	state        string
	availability string
}

func topicsFor(prefix string) topicSet {
	return topicSet{
		importEnergy: prefix + "/" + importSuffix,
		exportEnergy: prefix + "/" + exportSuffix,
		power:        prefix + "/" + powerSuffix,
		state:        prefix + "/" + stateSuffix,
		availability: prefix + "/" + availabilitySuffix,
	}
}

// formatValue renders a reading value the way the meters report them:
// a plain decimal number without exponent notation.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// stateDocument is the retained JSON snapshot of the last known values.
type stateDocument struct {
	ImportWh float64 `json:"import"`
	ExportWh float64 `json:"export"`
	PowerW   float64 `json:"power"`
}

func statePayload(reading sml.Reading) ([]byte, error) {
	doc := stateDocument{
		ImportWh: reading.ImportWh,
		ExportWh: reading.ExportWh,
		PowerW:   reading.PowerW,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode state document: %w", err)
	}

	return data, nil
}
