// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// RetentionWindow is how long a listing stays live after posting.
// Expiration is computed once at creation (postedDate + RetentionWindow)
// and can never be changed afterwards — the API rejects any patch that
// tries to touch it.
const RetentionWindow = 14 * 24 * time.Hour

// Location is where a listing (or a user) physically is.
//
// The address and zip come from the client. Latitude and longitude are
// filled in by the geocoder at creation time and are immutable afterwards.
// The pointers distinguish "not geocoded" (nil) from a genuine coordinate —
// (0, 0) is a real place in the Gulf of Guinea, not a sentinel.
type Location struct {
	Address string   `json:"address"`
	Zip     string   `json:"zip"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether the location was successfully geocoded.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

// Listing is a food-sharing post tied to a user and a location.
//
// The `json:"_id"` tag keeps the wire format existing clients expect: they
// address listings by `_id`, and the nested location/dietary shapes are
// preserved exactly.
//
// Dietary is a sparse map from restriction name ("dairy", "gluten", "nut")
// to whether the listing satisfies it. Keys the poster didn't fill in are
// simply absent — absent is NOT the same as false when filtering.
type Listing struct {
	ID         string          `json:"_id"`
	Title      string          `json:"title"`
	UserID     string          `json:"user"`
	Location   Location        `json:"location"`
	Category   string          `json:"category"`
	Dietary    map[string]bool `json:"dietary"`
	PostedDate time.Time       `json:"postedDate"`
	Expiration time.Time       `json:"expiration"`
	Archived   bool            `json:"archived"`
}

// ZipCount ranks a zip code by how many listings were posted there.
type ZipCount struct {
	Zip   string `json:"zip"`
	Count int    `json:"count"`
}
