package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/store"
)

// Number is a float that accepts either a JSON number or a numeric string.
// Null and empty strings leave it unset.
type Number struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = Number{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	*n = Number{Value: v, Set: true}
	return nil
}

func (n Number) ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// Report is the body of a location report, shared by the HTTP and MQTT ingest paths.
type Report struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	Latitude   Number `json:"latitude"`
	Longitude  Number `json:"longitude"`
	Accuracy   Number `json:"accuracy"`
	Battery    Number `json:"battery"`
	Timestamp  string `json:"timestamp"`
}

// DecodeReport parses a JSON report. Malformed bodies are validation errors.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("%w: invalid request body: %v", store.ErrValidation, err)
	}
	return r, nil
}

// Validate checks that the required fields are present.
func (r Report) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" || !r.Latitude.Set || !r.Longitude.Set {
		return fmt.Errorf("%w: Missing required fields", store.ErrValidation)
	}
	return nil
}

// Sample converts the report into a location sample, stamping it with now when the
// client sent no timestamp.
func (r Report) Sample(now time.Time) (models.LocationSample, error) {
	if err := r.Validate(); err != nil {
		return models.LocationSample{}, err
	}
	for name, v := range map[string]Number{"accuracy": r.Accuracy, "battery": r.Battery} {
		if v.Set && (math.IsNaN(v.Value) || math.IsInf(v.Value, 0)) {
			return models.LocationSample{}, fmt.Errorf("%w: %s must be finite", store.ErrValidation, name)
		}
	}

	ts := strings.TrimSpace(r.Timestamp)
	if ts == "" {
		ts = FormatTimestamp(now)
	}

	return models.LocationSample{
		Latitude:  r.Latitude.Value,
		Longitude: r.Longitude.Value,
		Accuracy:  r.Accuracy.ptr(),
		Battery:   r.Battery.ptr(),
		Timestamp: ts,
	}, nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(constants.TimestampLayout)
}
