package ingest_test

import (
	"testing"
	"time"

	"github.com/benmeehan/location-tracker/internal/ingest"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 20, 30, 456*int(time.Millisecond), time.FixedZone("CET", 3600))

func TestDecodeReport_NumbersAndNumericStrings(t *testing.T) {
	r, err := ingest.DecodeReport([]byte(`{"deviceId":"d1","deviceName":"Phone","latitude":"37.5","longitude":-122.25,"accuracy":"12","battery":88}`))
	require.NoError(t, err)

	sample, err := r.Sample(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 37.5, sample.Latitude)
	assert.Equal(t, -122.25, sample.Longitude)
	require.NotNil(t, sample.Accuracy)
	assert.Equal(t, 12.0, *sample.Accuracy)
	require.NotNil(t, sample.Battery)
	assert.Equal(t, 88.0, *sample.Battery)
	assert.Equal(t, "2024-03-01T09:20:30.456Z", sample.Timestamp)
	assert.Equal(t, "Phone", r.DeviceName)
}

func TestDecodeReport_OptionalFieldsAbsent(t *testing.T) {
	r, err := ingest.DecodeReport([]byte(`{"deviceId":"d1","latitude":0,"longitude":0,"accuracy":null,"battery":"","timestamp":"2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)

	sample, err := r.Sample(fixedNow)
	require.NoError(t, err)
	assert.Zero(t, sample.Latitude)
	assert.Zero(t, sample.Longitude)
	assert.Nil(t, sample.Accuracy)
	assert.Nil(t, sample.Battery)
	assert.Equal(t, "2024-01-01T00:00:00Z", sample.Timestamp)
}

func TestReport_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no device id", `{"latitude":1,"longitude":2}`},
		{"blank device id", `{"deviceId":"  ","latitude":1,"longitude":2}`},
		{"no latitude", `{"deviceId":"d1","longitude":2}`},
		{"null longitude", `{"deviceId":"d1","latitude":1,"longitude":null}`},
		{"empty latitude string", `{"deviceId":"d1","latitude":"","longitude":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ingest.DecodeReport([]byte(tt.body))
			require.NoError(t, err)

			_, err = r.Sample(fixedNow)
			assert.ErrorIs(t, err, store.ErrValidation)
			assert.Contains(t, err.Error(), "Missing required fields")
		})
	}
}

func TestDecodeReport_Malformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"deviceId":"d1","latitude":"north","longitude":2}`, `{"deviceId":"d1","latitude":true,"longitude":2}`} {
		_, err := ingest.DecodeReport([]byte(body))
		assert.ErrorIs(t, err, store.ErrValidation, body)
	}
}

func TestReport_NonFiniteOptional(t *testing.T) {
	r, err := ingest.DecodeReport([]byte(`{"deviceId":"d1","latitude":1,"longitude":2,"battery":"NaN"}`))
	require.NoError(t, err)

	_, err = r.Sample(fixedNow)
	assert.ErrorIs(t, err, store.ErrValidation)
}
