package geo

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/miniponz/food-share-application/internal/model"
)

// milesPerDegreeLat is the north-south span of one degree of latitude.
// Derived from the Earth radius, it converts a search radius in miles into
// a bounding box in degrees for the R-tree prefilter.
const milesPerDegreeLat = EarthRadiusMiles * math.Pi / 180

// pointTolerance is the tiny extent given to each indexed point — rtreego
// stores rectangles, so a point is a degenerate box this wide.
const pointTolerance = 1e-6

// entry adapts a listing to rtreego.Spatial so the tree can hold it.
// The point is stored as (lng, lat) — x before y.
type entry struct {
	listing model.Listing
	point   rtreego.Point
}

func (e *entry) Bounds() rtreego.Rect {
	return e.point.ToRect(pointTolerance)
}

// Index is an immutable 2-d R-tree over the coordinates of a set of
// listings. It is built per request from the store's current rows: requests
// share no mutable state, and at marketplace scale rebuilding is cheaper
// than keeping a write-synchronised index alive.
//
// Listings without coordinates (geocoding was skipped or failed upstream)
// are left out of the index — they can never satisfy a radius query.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex builds an index over the given listings.
func NewIndex(listings []model.Listing) *Index {
	tree := rtreego.NewTree(2, 25, 50)
	size := 0
	for _, l := range listings {
		if !l.Location.HasCoordinates() {
			continue
		}
		tree.Insert(&entry{
			listing: l,
			point:   rtreego.Point{*l.Location.Lng, *l.Location.Lat},
		})
		size++
	}
	return &Index{tree: tree, size: size}
}

// Size returns how many listings carry coordinates and were indexed.
func (ix *Index) Size() int {
	return ix.size
}

// Within returns all indexed listings at most radiusMiles from the
// reference point, ordered by ID for deterministic output.
//
// Two-phase query: the R-tree intersect finds everything inside the
// bounding box that circumscribes the radius circle, then the exact
// haversine test discards the box corners. The box is widened along
// longitude as cos(lat) shrinks; near the poles it degrades to a full
// longitude sweep rather than dividing by zero.
func (ix *Index) Within(lat, lng, radiusMiles float64) []model.Listing {
	if radiusMiles < 0 {
		return []model.Listing{}
	}

	dLat := radiusMiles / milesPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	dLng := 180.0
	if cosLat > 1e-6 {
		dLng = math.Min(180, dLat/cosLat)
	}

	box, err := rtreego.NewRect(
		rtreego.Point{lng - dLng, lat - dLat},
		[]float64{2*dLng + pointTolerance, 2*dLat + pointTolerance},
	)
	if err != nil {
		// Lengths are always positive here; a failure means the inputs
		// were NaN and nothing sensible can match.
		return []model.Listing{}
	}

	matches := []model.Listing{}
	for _, sp := range ix.tree.SearchIntersect(box) {
		e := sp.(*entry)
		if Miles(lat, lng, *e.listing.Location.Lat, *e.listing.Location.Lng) <= radiusMiles {
			matches = append(matches, e.listing)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches
}
