package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/location-tracker/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds the broker connection settings. Username and CACertificate are optional.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CACertificate  string
	ConnectTimeout time.Duration
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations

	newClient func(*mqtt.ClientOptions) MQTTClient
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		newClient: func(opts *mqtt.ClientOptions) MQTTClient {
			return mqtt.NewClient(opts)
		},
	}
}

// NewMqttServiceWithClient creates a MqttService that uses the given client constructor.
func NewMqttServiceWithClient(fileClient file.FileOperations, newClient func(*mqtt.ClientOptions) MQTTClient) *MqttService {
	return &MqttService{fileClient: fileClient, newClient: newClient}
}

// ClientOptions builds the paho options for the given settings.
func (s *MqttService) ClientOptions(o Options) (*mqtt.ClientOptions, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt broker is not configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if o.ConnectTimeout > 0 {
		opts.SetConnectTimeout(o.ConnectTimeout)
	}
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	if o.CACertificate != "" {
		caCert, err := s.fileClient.ReadFileRaw(o.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to append CA certificate")
		}
		opts.SetTLSConfig(&tls.Config{
			RootCAs:    caCertPool,
			MinVersion: tls.VersionTLS12,
		})
	}

	return opts, nil
}

// Initialize creates the client and connects to the broker.
func (s *MqttService) Initialize(o Options) error {
	opts, err := s.ClientOptions(o)
	if err != nil {
		return err
	}

	s.client = s.newClient(opts)

	token := s.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to broker %s: %w", o.Broker, token.Error())
	}

	return nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
}
