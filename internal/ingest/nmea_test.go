package ingest_test

import (
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/location-tracker/internal/ingest"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaMunich   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	rmcMunich   = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	ggaNoFix    = "$GPGGA,123520,,,,,0,00,,,M,,M,,*61"
	rmcVoid     = "$GPRMC,123520,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*77"
	ggaBayArea  = "$GPGGA,101112.250,3723.000,N,12206.000,W,1,05,1.5,10.0,M,0.0,M,,*49"
	badChecksum = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00"
	ggaLastSec  = "$GPGGA,235959,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*4B"
	ggaFirstSec = "$GPGGA,000004,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*4E"
)

func TestParseNMEA_GGA(t *testing.T) {
	now := time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC)

	sample, err := ingest.ParseNMEA([]byte(ggaMunich), now)
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, sample.Latitude, 1e-4)
	assert.InDelta(t, 11.516667, sample.Longitude, 1e-4)
	require.NotNil(t, sample.Accuracy)
	assert.Equal(t, 0.9, *sample.Accuracy)
	assert.Nil(t, sample.Battery)
	assert.Equal(t, "2024-05-06T12:35:19.000Z", sample.Timestamp)
}

func TestParseNMEA_GGADateFollowsNearestDay(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		now     time.Time
		want    string
	}{
		{"same day", ggaLastSec, time.Date(2024, 5, 6, 23, 59, 59, 0, time.UTC), "2024-05-06T23:59:59.000Z"},
		{"processed after midnight", ggaLastSec, time.Date(2024, 5, 7, 0, 0, 2, 0, time.UTC), "2024-05-06T23:59:59.000Z"},
		{"clock slightly behind before midnight", ggaFirstSec, time.Date(2024, 5, 6, 23, 59, 58, 0, time.UTC), "2024-05-07T00:00:04.000Z"},
		{"exactly twelve hours ahead", ggaMunich, time.Date(2024, 5, 6, 0, 35, 19, 0, time.UTC), "2024-05-06T12:35:19.000Z"},
		{"more than twelve hours ahead", ggaMunich, time.Date(2024, 5, 7, 0, 5, 0, 0, time.UTC), "2024-05-06T12:35:19.000Z"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sample, err := ingest.ParseNMEA([]byte(tc.payload), tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sample.Timestamp)
		})
	}
}

func TestParseNMEA_RMC(t *testing.T) {
	sample, err := ingest.ParseNMEA([]byte(rmcMunich), time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, sample.Latitude, 1e-4)
	assert.Nil(t, sample.Accuracy)
	assert.Equal(t, "1994-03-23T12:35:19.000Z", sample.Timestamp)
}

func TestParseNMEA_LastValidFixWins(t *testing.T) {
	now := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	payload := strings.Join([]string{
		ggaMunich,
		"garbage line",
		ggaBayArea,
		ggaNoFix,
		rmcVoid,
		badChecksum,
		"$GPGSV,not,a,position",
	}, "\r\n")

	sample, err := ingest.ParseNMEA([]byte(payload), now)
	require.NoError(t, err)
	assert.InDelta(t, 37.383333, sample.Latitude, 1e-4)
	assert.InDelta(t, -122.1, sample.Longitude, 1e-4)
	require.NotNil(t, sample.Accuracy)
	assert.Equal(t, 1.5, *sample.Accuracy)
	assert.Equal(t, "2024-05-06T10:11:12.250Z", sample.Timestamp)
}

func TestParseNMEA_NoFix(t *testing.T) {
	_, err := ingest.ParseNMEA([]byte(ggaNoFix+"\n"+rmcVoid), time.Now())
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = ingest.ParseNMEA(nil, time.Now())
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestDeviceIDFromTopic(t *testing.T) {
	assert.Equal(t, "truck-7", ingest.DeviceIDFromTopic("tracker/nmea/truck-7"))
	assert.Equal(t, "truck-7", ingest.DeviceIDFromTopic("tracker/nmea/truck-7/"))
	assert.Equal(t, "solo", ingest.DeviceIDFromTopic("solo"))
}
