package geoloc

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"
)

// ErrNoResults is returned when the geocoder knows no location for an address
var ErrNoResults = errors.New("no geocoding results")

// Geocoder resolves a postal address to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, err error)
}

// GoogleGeocoder uses the Google Maps Geocoding API
type GoogleGeocoder struct {
	client *maps.Client
	region string
}

// NewGoogleGeocoder creates a geocoder biased to Brazilian results
func NewGoogleGeocoder(apiKey string, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("maps api key not configured (set MAPS_API)")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, region: "br"}, nil
}

// Geocode returns the coordinates of the first match
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	})
	if err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, ErrNoResults
	}
	loc := results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}
