// Package mqtt exposes the sensor to Home Assistant through MQTT discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/metrics"
	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	qos            = 1
)

// Config holds broker and discovery settings.
type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	DiscoveryPrefix string        // default: "homeassistant"
	PublishTimeout  time.Duration // default: 10s
	Observer        geometry.Observer
}

func (c Config) withDefaults() Config {
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = "homeassistant"
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
	if c.ClientID == "" {
		c.ClientID = "iss-spotter-" + UniqueID(c.Observer)[:8]
	}
	return c
}

// publishClient is the part of paho.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Topics are the MQTT topics of one sensor.
type Topics struct {
	Discovery    string
	State        string
	Attributes   string
	Availability string
}

func newTopics(prefix, uniqueID string) Topics {
	base := "iss_spotter/" + uniqueID
	return Topics{
		Discovery:    fmt.Sprintf("%s/sensor/iss_spotter_%s/config", prefix, uniqueID),
		State:        base + "/state",
		Attributes:   base + "/attributes",
		Availability: base + "/availability",
	}
}

// UniqueID derives a stable sensor id from the observer position so the
// entity survives restarts and two locations never collide.
func UniqueID(obs geometry.Observer) string {
	name := fmt.Sprintf("iss-spotter:%.4f:%.4f", obs.LatitudeDeg, obs.LongitudeDeg)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

type discoveryDevice struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model"`
}

type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	DeviceClass         string          `json:"device_class"`
	Icon                string          `json:"icon"`
	StateTopic          string          `json:"state_topic"`
	JSONAttributesTopic string          `json:"json_attributes_topic"`
	AvailabilityTopic   string          `json:"availability_topic"`
	PayloadAvailable    string          `json:"payload_available"`
	PayloadNotAvailable string          `json:"payload_not_available"`
	Device              discoveryDevice `json:"device"`
}

// Publisher writes sensor snapshots as retained MQTT messages.
type Publisher struct {
	client     publishClient
	disconnect func()
	cfg        Config
	topics     Topics
	uniqueID   string
	logger     *slog.Logger
}

// NewPublisher wraps an already connected client.
func NewPublisher(client publishClient, cfg Config, logger *slog.Logger) *Publisher {
	cfg = cfg.withDefaults()
	id := UniqueID(cfg.Observer)
	return &Publisher{
		client:     client,
		disconnect: func() {},
		cfg:        cfg,
		topics:     newTopics(cfg.DiscoveryPrefix, id),
		uniqueID:   id,
		logger:     logger,
	}
}

// Connect dials the broker. The discovery config is re-announced on every
// (re)connect, and the broker marks the sensor offline if the connection
// drops.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	cfg = cfg.withDefaults()

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})

	p := NewPublisher(nil, cfg, logger)
	opts.SetWill(p.topics.Availability, payloadOffline, qos, true)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "unique_id", p.uniqueID)
		// Runs on paho's goroutine; the publish must not block on it.
		go func() {
			if err := p.Announce(context.Background()); err != nil {
				logger.Error("mqtt discovery announce failed", "error", err)
			}
		}()
	})

	client := paho.NewClient(opts)
	p.client = client
	p.disconnect = func() { client.Disconnect(250) }

	if err := p.wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.Broker, err)
	}
	return p, nil
}

// Topics returns the topics used by the publisher.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// Announce publishes the retained discovery config.
func (p *Publisher) Announce(ctx context.Context) error {
	payload, err := json.Marshal(discoveryConfig{
		Name:                "ISS next visible pass",
		UniqueID:            p.uniqueID,
		DeviceClass:         "timestamp",
		Icon:                "mdi:space-station",
		StateTopic:          p.topics.State,
		JSONAttributesTopic: p.topics.Attributes,
		AvailabilityTopic:   p.topics.Availability,
		PayloadAvailable:    payloadOnline,
		PayloadNotAvailable: payloadOffline,
		Device: discoveryDevice{
			Identifiers: []string{"iss_spotter_" + p.uniqueID},
			Name:        "ISS Spotter",
			Model:       "Visible pass predictor",
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling discovery config: %w", err)
	}
	return p.publish(ctx, p.topics.Discovery, payload)
}

// Publish writes the snapshot's attributes, state and availability. The
// state topic is left alone while the sensor is unavailable, since Home
// Assistant rejects non-timestamp values for a timestamp sensor.
func (p *Publisher) Publish(ctx context.Context, snap *sensor.Snapshot) error {
	attrs, err := json.Marshal(snap.Attributes)
	if err != nil {
		return fmt.Errorf("marshaling attributes: %w", err)
	}

	var errs []error
	errs = append(errs, p.publish(ctx, p.topics.Attributes, attrs))
	availability := payloadOffline
	if snap.Available {
		availability = payloadOnline
		errs = append(errs, p.publish(ctx, p.topics.State, []byte(snap.State)))
	}
	errs = append(errs, p.publish(ctx, p.topics.Availability, []byte(availability)))
	return errors.Join(errs...)
}

// Close marks the sensor offline and disconnects.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.publish(ctx, p.topics.Availability, []byte(payloadOffline)); err != nil {
		p.logger.Warn("mqtt offline publish failed", "error", err)
	}
	p.disconnect()
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	err := p.wait(ctx, p.client.Publish(topic, qos, true, payload))
	if err != nil {
		metrics.MQTTPublished("error")
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	metrics.MQTTPublished("ok")
	p.logger.Debug("mqtt published", "topic", topic, "bytes", len(payload))
	return nil
}

func (p *Publisher) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(p.cfg.PublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", p.cfg.PublishTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
