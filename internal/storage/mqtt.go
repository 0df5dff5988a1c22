package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"switchmonitor/internal/config"
	"switchmonitor/internal/models"
)

const publishTimeout = 5 * time.Second

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// transitionMessage is the JSON payload published per transition.
type transitionMessage struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSink publishes every transition to a broker topic.
type MQTTSink struct {
	client publisher
	topic  string
	close  func()
}

// NewMQTTSink connects to the broker with exponential backoff.
func NewMQTTSink(ctx context.Context, cfg config.MQTT) (*MQTTSink, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt connect failed: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", addr, err)
	}
	log.Printf("Connected to MQTT broker at %s", addr)

	return &MQTTSink{
		client: client,
		topic:  cfg.Topic,
		close:  func() { client.Disconnect(250) },
	}, nil
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Record implements Sink.
func (s *MQTTSink) Record(_ context.Context, ev models.TransitionEvent) error {
	payload, err := json.Marshal(transitionMessage{
		ID:        uuid.NewString(),
		IP:        ev.Device.IP,
		Name:      ev.Device.Name,
		Status:    string(ev.NewStatus),
		Timestamp: ev.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode transition: %w", err)
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
