// Package events publishes user lifecycle notifications over MQTT.
//
// Topics are <prefix>/users/<action> where action is created, updated or
// deleted; the payload is {"id", "name", "at"}. Without a configured broker
// the Noop publisher is used and events are dropped.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/platinummonkey/adminkit/pkg/observability"
)

// Action names a lifecycle transition.
type Action string

const (
	UserCreated Action = "created"
	UserUpdated Action = "updated"
	UserDeleted Action = "deleted"
)

// DefaultTopicPrefix is used when the config leaves the prefix empty.
const DefaultTopicPrefix = "adminkit"

// UserEvent is the JSON payload of a user notification.
type UserEvent struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Publisher sends user lifecycle events.
type Publisher interface {
	PublishUser(ctx context.Context, action Action, event UserEvent) error
	Close()
}

// Topic returns the topic for action under prefix.
func Topic(prefix string, action Action) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/users/" + string(action)
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishUser(context.Context, Action, UserEvent) error { return nil }
func (Noop) Close()                                              {}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTPublisher publishes events to an MQTT broker through paho.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewMQTTPublisher connects to the broker. metrics may be nil.
func NewMQTTPublisher(cfg MQTTConfig, metrics *observability.Metrics, logger *observability.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("mqtt connection lost")
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return newMQTTPublisher(client, cfg.TopicPrefix, cfg.QoS, timeout, metrics, logger), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string, qos byte, timeout time.Duration, metrics *observability.Metrics, logger *observability.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// PublishUser publishes one event and waits for the broker acknowledgement
// (QoS > 0) or the timeout.
func (p *MQTTPublisher) PublishUser(ctx context.Context, action Action, event UserEvent) error {
	topic := Topic(p.prefix, action)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode user event: %w", err)
	}

	token := p.client.Publish(topic, p.qos, false, payload)

	wait := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}

	status := "ok"
	switch {
	case !token.WaitTimeout(wait):
		err = fmt.Errorf("timed out publishing to %s", topic)
	case token.Error() != nil:
		err = fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.EventsPublishedTotal.WithLabelValues(topic, status).Inc()
	}
	return err
}

// Close disconnects, allowing in-flight messages 250ms to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
