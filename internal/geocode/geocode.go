// Package geocode wraps the external geocoding provider behind a small
// interface so the rest of the app (and its tests) never talk to Google
// directly.
//
// WHY AN INTERFACE?
// The geocoder is the one network collaborator in the create path. Tests
// inject a stub that returns fixed coordinates; production injects the
// Google-backed client. Same pattern as the repository interfaces — accept
// interfaces, return structs.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/nf/geocode"
)

// ErrNoResults means the provider answered but found nothing for the
// query — a bogus zip code or an address it can't resolve. Callers treat
// this as a validation problem, not a provider outage.
var ErrNoResults = errors.New("geocode: no results for query")

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Place is a successfully geocoded query: its coordinates plus a
// human-facing map URL for that point.
type Place struct {
	Point  Point
	MapURL string
}

// Geocoder resolves a free-form address or zip code to a Place.
// One attempt, fail fast — no retries; a geocoding failure during listing
// creation must abort the create.
type Geocoder interface {
	Locate(ctx context.Context, query string) (*Place, error)
}

// Google geocodes through the Google Maps geocoding API.
type Google struct {
	// Region biases results ("us" keeps short zip queries inside the
	// United States instead of matching postal codes worldwide).
	Region string
}

// NewGoogle creates a Google geocoder with the given region bias.
func NewGoogle(region string) *Google {
	return &Google{Region: region}
}

// Locate resolves the query through Google. The underlying client has no
// context support, so the lookup runs in a goroutine and the caller's
// cancellation is honoured by abandoning the result.
func (g *Google) Locate(ctx context.Context, query string) (*Place, error) {
	req := &geocode.Request{
		Provider: geocode.GOOGLE,
		Region:   g.Region,
		Address:  query,
	}

	type lookup struct {
		resp *geocode.Response
		err  error
	}
	done := make(chan lookup, 1)
	go func() {
		resp, err := req.Lookup(nil)
		done <- lookup{resp, err}
	}()

	var resp *geocode.Response
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("geocode: lookup %q: %w", query, ctx.Err())
	case l := <-done:
		if l.err != nil {
			return nil, fmt.Errorf("geocode: lookup %q: %w", query, l.err)
		}
		resp = l.resp
	}

	if resp.Status == "ZERO_RESULTS" {
		return nil, fmt.Errorf("geocode: lookup %q: %w", query, ErrNoResults)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("geocode: lookup %q: provider status %s", query, resp.Status)
	}
	if resp.GoogleResponse == nil || len(resp.GoogleResponse.Results) == 0 {
		return nil, fmt.Errorf("geocode: lookup %q: %w", query, ErrNoResults)
	}

	loc := resp.GoogleResponse.Results[0].Geometry.Location
	return &Place{
		Point:  Point{Lat: loc.Lat, Lng: loc.Lng},
		MapURL: MapURL(loc.Lat, loc.Lng),
	}, nil
}

// MapURL builds a shareable map link for a coordinate pair. This is the
// `url` field in proximity search responses.
func MapURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%.6f,%.6f", lat, lng)
}
