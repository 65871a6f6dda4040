package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
)

// RealPublisher talks to an MQTT broker with automatic reconnection.
// Publishes during an outage fail fast instead of queueing stale
// telemetry.
type RealPublisher struct {
	client paho.Client
}

// NewRealPublisher connects to broker (e.g. tcp://host:1883) under the
// given client ID. The connect retries in the background; a broker that
// is down at boot does not block startup.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval)
	client := paho.NewClient(opts)

	token := client.Connect()
	// Wait briefly for the first attempt; with retry enabled a timeout
	// here only means the broker comes up later.
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &RealPublisher{client: client}, nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// PublishEvent sends a brew event, QoS 0, unretained.
func (p *RealPublisher) PublishEvent(payload []byte) error {
	return p.publish(TopicEvents, 0, false, payload)
}

// PublishSystem sends a lifecycle event, QoS 1, retained.
func (p *RealPublisher) PublishSystem(payload []byte) error {
	return p.publish(TopicSystem, 1, true, payload)
}

// Connected reports the live broker link.
func (p *RealPublisher) Connected() bool {
	return p.client.IsConnected()
}

// Close disconnects cleanly, giving in-flight publishes a moment to
// finish.
func (p *RealPublisher) Close() {
	p.client.Disconnect(250)
}
