package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const publishQoS = 1

// NewClientFunc creates the underlying MQTT client; tests replace it.
var NewClientFunc = mqtt.NewClient

// MQTTOptions configures the MQTT notifier.
type MQTTOptions struct {
	Broker      string // host:port or scheme://host:port
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTNotifier publishes match events as JSON to <prefix>/matches.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// NewMQTTNotifier creates the client and starts connecting.
// The initial connection is attempted once; later drops reconnect automatically.
func NewMQTTNotifier(opts MQTTOptions) (*MQTTNotifier, error) {
	if opts.Broker == "" {
		return nil, errors.New("MQTT broker is required")
	}

	url := brokerURL(opts.Broker)
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(url)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetMaxReconnectInterval(1 * time.Minute)
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("MQTT connection lost: %v. Attempting to reconnect...", err)
	})
	clientOpts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Infof("Connected to MQTT broker: %s", url)
	})

	client := NewClientFunc(clientOpts)
	log.Infof("Attempting to connect to MQTT broker: %s", url)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", url, token.Error())
	}

	prefix := strings.TrimSuffix(opts.TopicPrefix, "/")
	return &MQTTNotifier{client: client, topic: prefix + "/matches"}, nil
}

// Topic returns the topic events are published to.
func (n *MQTTNotifier) Topic() string {
	return n.topic
}

// NotifyMatch publishes the event and waits for the broker acknowledgement or ctx.
func (n *MQTTNotifier) NotifyMatch(ctx context.Context, event MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	token := n.client.Publish(n.topic, publishQoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish match event: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish match event: %w", ctx.Err())
	}
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	if n.client != nil && n.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		n.client.Disconnect(250) // Wait 250ms for disconnection
	}
}
