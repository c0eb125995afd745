package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/location-tracker/internal/api"
	"github.com/benmeehan/location-tracker/internal/mocks"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/persistence"
	"github.com/benmeehan/location-tracker/internal/state_managers"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/benmeehan/location-tracker/pkg/file"
	"github.com/benmeehan/location-tracker/pkg/geocode"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// The production geocoder is wired into the API through api.Geocoder.
var _ api.Geocoder = (*geocode.GoogleGeocoder)(nil)

type stubGeocoder struct {
	address string
	err     error
}

func (g stubGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return g.address, g.err
}

func newDevices(t *testing.T) *state_managers.DeviceStateManager {
	t.Helper()
	codec := persistence.NewFileCodec(filepath.Join(t.TempDir(), "locations.json"), file.NewFileService(), zerolog.Nop())
	require.NoError(t, codec.Init(context.Background()))

	devices := state_managers.NewDeviceStateManager(codec, zerolog.Nop())
	require.NoError(t, devices.LoadState(context.Background()))
	return devices
}

func newServer(t *testing.T, devices api.DeviceService, geocoder api.Geocoder) http.Handler {
	t.Helper()
	srv := api.New(api.DefaultConfig(), devices, geocoder, semver.MustParse("1.2.0"), zerolog.Nop())
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIngestAndQuery(t *testing.T) {
	h := newServer(t, newDevices(t), nil)

	rec := do(t, h, http.MethodPost, "/api/location", `{"deviceId":"d1","deviceName":"Phone","latitude":37.1,"longitude":"-122.1","battery":"55"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Location saved"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var devices []models.DeviceSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "d1", devices[0].ID)
	assert.Equal(t, "Phone", devices[0].Name)
	require.NotNil(t, devices[0].LastLocation)
	assert.Equal(t, -122.1, devices[0].LastLocation.Longitude)
	require.NotNil(t, devices[0].LastLocation.Battery)
	assert.Nil(t, devices[0].LastLocation.Accuracy)

	rec = do(t, h, http.MethodGet, "/api/devices/d1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, "d1", history["deviceId"])
	assert.Len(t, history["locations"], 1)
	assert.Contains(t, rec.Body.String(), `"accuracy":null`)
}

func TestIngestValidation(t *testing.T) {
	h := newServer(t, newDevices(t), nil)

	rec := do(t, h, http.MethodPost, "/api/location", `{"deviceId":"d1","latitude":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/location", `{"deviceId":"d1","latitude":91,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/location", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/location", `{"deviceId":"d1","latitude":0,"longitude":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestBodyTooLarge(t *testing.T) {
	h := newServer(t, newDevices(t), nil)

	body := fmt.Sprintf(`{"deviceId":"d1","latitude":1,"longitude":2,"deviceName":%q}`, strings.Repeat("x", api.MaxBodyBytes))
	rec := do(t, h, http.MethodPost, "/api/location", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHistoryLimit(t *testing.T) {
	h := newServer(t, newDevices(t), nil)
	for i := 0; i < 5; i++ {
		rec := do(t, h, http.MethodPost, "/api/location", fmt.Sprintf(`{"deviceId":"d1","latitude":%d,"longitude":1,"timestamp":"t%d"}`, i, i))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	tests := []struct {
		query  string
		status int
		want   []string
	}{
		{"", http.StatusOK, []string{"t0", "t1", "t2", "t3", "t4"}},
		{"?limit=2", http.StatusOK, []string{"t3", "t4"}},
		{"?limit=0", http.StatusOK, []string{"t4"}},
		{"?limit=50", http.StatusOK, []string{"t0", "t1", "t2", "t3", "t4"}},
		{"?limit=abc", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/devices/d1/history"+tt.query, "")
			require.Equal(t, tt.status, rec.Code)
			if tt.want == nil {
				return
			}
			var history models.DeviceHistory
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
			got := make([]string, 0, len(history.Locations))
			for _, l := range history.Locations {
				got = append(got, l.Timestamp)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteAndClear(t *testing.T) {
	h := newServer(t, newDevices(t), nil)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/location", `{"deviceId":"d1","latitude":1,"longitude":2}`).Code)

	rec := do(t, h, http.MethodDelete, "/api/devices/d1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"History cleared"}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/devices/d1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Device deleted"}`, rec.Body.String())

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/devices/d1"},
		{http.MethodDelete, "/api/devices/d1/history"},
		{http.MethodGet, "/api/devices/d1/history"},
	} {
		rec = do(t, h, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
		assert.JSONEq(t, `{"error":"Device not found"}`, rec.Body.String())
	}
}

func TestPersistenceFailureIs500(t *testing.T) {
	codec := new(mocks.Codec)
	codec.On("Name").Return("mock")
	codec.On("Load", mock.Anything).Return(store.New(), nil)
	codec.On("Save", mock.Anything, mock.Anything).Return(errors.New("read-only file system"))
	devices := state_managers.NewDeviceStateManager(codec, zerolog.Nop())
	require.NoError(t, devices.LoadState(context.Background()))
	h := newServer(t, devices, nil)

	rec := do(t, h, http.MethodPost, "/api/location", `{"deviceId":"d1","latitude":1,"longitude":2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/devices", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAddress(t *testing.T) {
	devices := newDevices(t)
	require.NoError(t, devices.UpsertLocation(context.Background(), "d1", "", models.LocationSample{Latitude: 37.42, Longitude: -122.08}))
	require.NoError(t, devices.UpsertLocation(context.Background(), "empty", "", models.LocationSample{Latitude: 1, Longitude: 1}))
	require.NoError(t, devices.ClearHistory(context.Background(), "empty"))

	rec := do(t, newServer(t, devices, nil), http.MethodGet, "/api/devices/d1/address", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h := newServer(t, devices, stubGeocoder{address: "Mountain View, CA"})
	rec = do(t, h, http.MethodGet, "/api/devices/d1/address", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deviceId":"d1","latitude":37.42,"longitude":-122.08,"address":"Mountain View, CA"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/devices/ghost/address", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/devices/empty/address", "").Code)

	h = newServer(t, devices, stubGeocoder{err: errors.New("quota exceeded")})
	assert.Equal(t, http.StatusBadGateway, do(t, h, http.MethodGet, "/api/devices/d1/address", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	devices := newDevices(t)
	require.NoError(t, devices.UpsertLocation(context.Background(), "d1", "", models.LocationSample{Latitude: 1, Longitude: 2}))
	h := newServer(t, devices, nil)

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.0","devices":1}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker_devices")
}

func TestMethodAndPreflight(t *testing.T) {
	h := newServer(t, newDevices(t), nil)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/location", "").Code)

	rec := do(t, h, http.MethodOptions, "/api/location", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartStop(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	srv := api.New(cfg, newDevices(t), nil, semver.MustParse("1.2.0"), zerolog.Nop())

	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop())
	assert.Error(t, srv.Stop())
}
