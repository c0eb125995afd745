package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/ingest"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: s.version.String(),
		Devices: s.devices.DeviceCount(),
	})
}

func (s *Server) handleIngestLocation(w http.ResponseWriter, r *http.Request) {
	err := s.ingestLocation(r)
	observability.IngestTotal.WithLabelValues(constants.IngestSourceHTTP, observability.ResultLabel(err)).Inc()

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Location saved")
}

func (s *Server) ingestLocation(r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	report, err := ingest.DecodeReport(body)
	if err != nil {
		return err
	}
	sample, err := report.Sample(s.now())
	if err != nil {
		return err
	}

	if err := s.devices.UpsertLocation(r.Context(), report.DeviceID, report.DeviceName, sample); err != nil {
		return err
	}

	name := report.DeviceName
	if name == "" {
		name = report.DeviceID
	}
	s.logger.Info().
		Str("device_id", report.DeviceID).
		Float64("latitude", sample.Latitude).
		Float64("longitude", sample.Longitude).
		Msgf("Location received from %s", name)
	return nil
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.ListDevices(r.Context()))
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.devices.GetHistory(r.Context(), r.PathValue("deviceId"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.DeleteDevice(r.Context(), r.PathValue("deviceId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Device deleted")
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.ClearHistory(r.Context(), r.PathValue("deviceId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "History cleared")
}

func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "Geocoding is disabled")
		return
	}

	id := r.PathValue("deviceId")
	last, err := s.devices.LastLocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if last == nil {
		writeErrorMessage(w, http.StatusNotFound, "Device has no location")
		return
	}

	address, err := s.geocoder.ReverseGeocode(r.Context(), last.Latitude, last.Longitude)
	if err != nil {
		s.logger.Warn().Err(err).Str("device_id", id).Msg("Reverse geocoding failed")
		writeErrorMessage(w, http.StatusBadGateway, "Reverse geocoding failed")
		return
	}

	writeJSON(w, http.StatusOK, models.DeviceAddress{
		ID:        id,
		Latitude:  last.Latitude,
		Longitude: last.Longitude,
		Address:   address,
	})
}

// parseLimit reads the history limit query parameter. Absent means the default.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return constants.DefaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", store.ErrValidation)
	}
	return limit, nil
}
