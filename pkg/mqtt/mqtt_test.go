package mqtt_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benmeehan/location-tracker/internal/mocks"
	"github.com/benmeehan/location-tracker/pkg/mqtt"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ mqtt.MQTTClient = (*mqtt.MqttService)(nil)
	_ mqtt.MQTTClient = (paho.Client)(nil)
	_ mqtt.MQTTClient = (*mocks.MQTTClient)(nil)
)

func selfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestClientOptions_Plain(t *testing.T) {
	svc := mqtt.NewMqttService(new(mocks.FileOperations))

	opts, err := svc.ClientOptions(mqtt.Options{Broker: "tcp://localhost:1883", ClientID: "tracker-1"})
	require.NoError(t, err)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
	assert.Equal(t, "tracker-1", opts.ClientID)
	assert.Empty(t, opts.Username)
	assert.Nil(t, opts.TLSConfig)
}

func TestClientOptions_CredentialsAndTLS(t *testing.T) {
	fileClient := new(mocks.FileOperations)
	fileClient.On("ReadFileRaw", "ca.pem").Return(selfSignedPEM(t), nil)
	svc := mqtt.NewMqttService(fileClient)

	opts, err := svc.ClientOptions(mqtt.Options{
		Broker:        "ssl://broker:8883",
		ClientID:      "tracker-1",
		Username:      "user",
		Password:      "secret",
		CACertificate: "ca.pem",
	})
	require.NoError(t, err)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	require.NotNil(t, opts.TLSConfig)
	assert.NotNil(t, opts.TLSConfig.RootCAs)
	assert.False(t, opts.TLSConfig.InsecureSkipVerify)
}

func TestClientOptions_Errors(t *testing.T) {
	fileClient := new(mocks.FileOperations)
	fileClient.On("ReadFileRaw", "missing.pem").Return(nil, errors.New("no such file"))
	fileClient.On("ReadFileRaw", "junk.pem").Return([]byte("not a cert"), nil)
	svc := mqtt.NewMqttService(fileClient)

	_, err := svc.ClientOptions(mqtt.Options{})
	assert.Error(t, err)

	_, err = svc.ClientOptions(mqtt.Options{Broker: "ssl://b:8883", CACertificate: "missing.pem"})
	assert.ErrorContains(t, err, "failed to read CA certificate")

	_, err = svc.ClientOptions(mqtt.Options{Broker: "ssl://b:8883", CACertificate: "junk.pem"})
	assert.ErrorContains(t, err, "failed to append CA certificate")
}

func TestInitialize(t *testing.T) {
	client := new(mocks.MQTTClient)
	client.On("Connect").Return(mocks.NewCompletedToken(nil)).Once()
	client.On("Connect").Return(mocks.NewCompletedToken(errors.New("refused")))

	svc := mqtt.NewMqttServiceWithClient(new(mocks.FileOperations), func(*paho.ClientOptions) mqtt.MQTTClient {
		return client
	})

	require.NoError(t, svc.Initialize(mqtt.Options{Broker: "tcp://localhost:1883", ClientID: "c"}))

	err := svc.Initialize(mqtt.Options{Broker: "tcp://localhost:1883", ClientID: "c"})
	assert.ErrorContains(t, err, "refused")
}
