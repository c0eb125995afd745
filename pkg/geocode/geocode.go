package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"googlemaps.github.io/maps"
)

// ErrNoResult is returned when the upstream service knows no address for a coordinate.
var ErrNoResult = errors.New("no address found")

// maxCacheEntries bounds the address cache; the cache is dropped when it grows past it.
const maxCacheEntries = 10000

// LookupFunc performs one uncached reverse geocoding request.
type LookupFunc func(ctx context.Context, lat, lon float64) (string, error)

// GoogleGeocoder uses the Google Maps Geocoding API and caches results per coordinate.
type GoogleGeocoder struct {
	lookup  LookupFunc
	timeout time.Duration
	cache   cmap.ConcurrentMap[string, string]
}

// NewGoogleGeocoder creates a GoogleGeocoder for the given API key.
func NewGoogleGeocoder(apiKey string, timeout time.Duration) (*GoogleGeocoder, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return NewCachedGeocoder(func(ctx context.Context, lat, lon float64) (string, error) {
		results, err := c.ReverseGeocode(ctx, &maps.GeocodingRequest{
			LatLng: &maps.LatLng{Lat: lat, Lng: lon},
		})
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			return "", ErrNoResult
		}
		return results[0].FormattedAddress, nil
	}, timeout), nil
}

// NewCachedGeocoder wraps lookup with a timeout and a result cache.
func NewCachedGeocoder(lookup LookupFunc, timeout time.Duration) *GoogleGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleGeocoder{
		lookup:  lookup,
		timeout: timeout,
		cache:   cmap.New[string](),
	}
}

// ReverseGeocode returns the address for a coordinate.
// Coordinates are rounded to five decimals (about one metre) for caching.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	key := cacheKey(lat, lon)
	if address, ok := g.cache.Get(key); ok {
		return address, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	address, err := g.lookup(ctx, lat, lon)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding %s: %w", key, err)
	}

	if g.cache.Count() >= maxCacheEntries {
		g.cache.Clear()
	}
	g.cache.Set(key, address)
	return address, nil
}

// CacheSize returns the number of cached addresses.
func (g *GoogleGeocoder) CacheSize() int {
	return g.cache.Count()
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}
