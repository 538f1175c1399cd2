// Package geo provides the geodesic math behind proximity search:
// great-circle distances in statute miles and an R-tree index used to
// narrow radius queries to a bounding box before the exact distance test.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius in statute miles (IUGG mean
// radius R1 = 6371.0088 km). All radius parameters in the API are measured
// against this constant, so it is named here rather than inlined for
// reproducibility.
const EarthRadiusMiles = 3958.7613

// Miles returns the haversine (great-circle) distance in miles between two
// points given as decimal-degree latitude/longitude pairs.
//
// Haversine treats the Earth as a sphere, which is accurate to ~0.5% —
// plenty for "show me food within 10 miles". A full ellipsoidal solution
// (Vincenty) buys nothing at neighbourhood scale.
func Miles(aLat, aLng, bLat, bLng float64) float64 {
	const degToRad = math.Pi / 180

	latA := aLat * degToRad
	latB := bLat * degToRad
	dLat := (bLat - aLat) * degToRad
	dLng := (bLng - aLng) * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng
	return 2 * EarthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}
