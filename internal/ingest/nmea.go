package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/benmeehan/location-tracker/internal/store"
)

// DeviceIDFromTopic returns the last segment of an MQTT topic.
func DeviceIDFromTopic(topic string) string {
	topic = strings.TrimRight(topic, "/")
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// ParseNMEA extracts the last valid fix from a block of NMEA 0183 sentences.
// GGA fixes carry HDOP as accuracy; RMC fixes carry their own date and time.
// Sentences that fail to parse or are not GGA/RMC are skipped.
func ParseNMEA(payload []byte, now time.Time) (models.LocationSample, error) {
	var (
		fix   models.LocationSample
		found bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		switch s := sentence.(type) {
		case nmea.GGA:
			if s.FixQuality == nmea.Invalid {
				continue
			}
			hdop := s.HDOP
			fix = models.LocationSample{
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
				Accuracy:  &hdop,
				Timestamp: FormatTimestamp(fixTime(nmea.Date{}, s.Time, now)),
			}
			found = true
		case nmea.RMC:
			if s.Validity != nmea.ValidRMC {
				continue
			}
			fix = models.LocationSample{
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
				Timestamp: FormatTimestamp(fixTime(s.Date, s.Time, now)),
			}
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return models.LocationSample{}, fmt.Errorf("%w: reading NMEA payload: %v", store.ErrValidation, err)
	}

	if !found {
		return models.LocationSample{}, fmt.Errorf("%w: no valid GPS fix found", store.ErrValidation)
	}
	return fix, nil
}

// fixTime combines an NMEA date and time. A missing time falls back to now. A missing date
// falls back to the UTC day of now, shifted by one day when that puts the fix more than 12
// hours away from now, so a fix taken just before midnight and processed just after it keeps
// its own day.
func fixTime(d nmea.Date, t nmea.Time, now time.Time) time.Time {
	now = now.UTC()
	if !t.Valid {
		return now
	}

	if d.Valid {
		year := 2000 + d.YY
		if d.YY >= 80 {
			year = 1900 + d.YY
		}
		return clock(year, time.Month(d.MM), d.DD, t)
	}

	year, month, day := now.Date()
	ts := clock(year, month, day, t)
	switch {
	case ts.Sub(now) > 12*time.Hour:
		ts = ts.AddDate(0, 0, -1)
	case now.Sub(ts) > 12*time.Hour:
		ts = ts.AddDate(0, 0, 1)
	}
	return ts
}

func clock(year int, month time.Month, day int, t nmea.Time) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
