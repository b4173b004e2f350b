package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 10 * time.Second

// MQTTSettings holds configuration for the lockout notification channel.
type MQTTSettings struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      int
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes lockout and rate limit events as JSON to one topic.
type MQTTSink struct {
	client publisher
	closer func()
	topic  string
	qos    byte
	logger *slog.Logger
}

// DialMQTT connects to the broker and returns a sink bound to the session.
func DialMQTT(s MQTTSettings, logger *slog.Logger) (*MQTTSink, error) {
	clientID := s.ClientID
	if clientID == "" {
		clientID = "goguard"
	}
	opts := mqtt.NewClientOptions().
		SetClientID(clientID).
		AddBroker(s.Broker).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout).
		SetWriteTimeout(mqttTimeout)
	if s.Username != "" {
		opts.SetUsername(s.Username)
		opts.SetPassword(s.Password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if tok.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", tok.Error())
	}

	sink := newMQTTSink(client, s.Topic, s.QoS, logger)
	sink.closer = func() { client.Disconnect(250) }
	return sink, nil
}

func newMQTTSink(client publisher, topic string, qos int, logger *slog.Logger) *MQTTSink {
	q := byte(qos)
	if q > 2 {
		q = 0
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MQTTSink{client: client, topic: topic, qos: q, logger: logger}
}

type mqttPayload struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Identity   string            `json:"identity,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt string            `json:"occurred_at"`
}

func (m *MQTTSink) Emit(_ context.Context, event goGuard.AuditEvent) {
	switch event.EventType {
	case goGuard.AuditLockoutTriggered, goGuard.AuditLockoutCleared, goGuard.AuditRateLimitExceeded:
	default:
		return
	}

	body, err := json.Marshal(mqttPayload{
		ID:         event.ID,
		Type:       event.EventType,
		Identity:   event.Identity,
		RequestID:  event.RequestID,
		Metadata:   event.Metadata,
		OccurredAt: event.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		m.logger.Error("mqtt_marshal_failed", "error", err)
		return
	}

	pub := m.client.Publish(m.topic, m.qos, false, body)
	if !pub.WaitTimeout(mqttTimeout) {
		m.logger.Warn("mqtt_publish_timeout", "event_type", event.EventType)
		return
	}
	if pub.Error() != nil {
		m.logger.Warn("mqtt_publish_failed", "event_type", event.EventType, "error", pub.Error())
	}
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() {
	if m.closer != nil {
		m.closer()
	}
}
