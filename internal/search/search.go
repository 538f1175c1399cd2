// Package search computes the derived views over the listing store:
// proximity ("close"), keyword, dietary filtering, and the hotzip ranking.
//
// Like the other services, it is HTTP-agnostic: handlers translate query
// strings into these calls and the results back to JSON. It owns no state —
// every query reads the store, filters, and returns.
//
// ARCHIVED LISTINGS (policy decision, see DESIGN.md):
// Search answers "what food is available right now", so archived listings
// are excluded from every result in this package. They remain reachable
// through the plain CRUD reads (get by id, list all, by user, by zip).
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/geo"
	"github.com/miniponz/food-share-application/internal/geocode"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

// CloseResult is the wire shape of the "close" family: a map URL for the
// reference point plus the listings inside the radius. Matches is always
// non-nil so an empty result serializes as [] rather than null.
//
// Only the close family wraps; dietary and keyword endpoints return the
// bare listing array even when combined with a radius.
type CloseResult struct {
	URL     string          `json:"url"`
	Matches []model.Listing `json:"matches"`
}

// Service runs search queries over the listing repository, using the
// geocoder to resolve zip codes into reference points.
type Service struct {
	listings repository.ListingRepository
	geocoder geocode.Geocoder
	logger   *slog.Logger
}

// NewService creates a search Service.
func NewService(listings repository.ListingRepository, geocoder geocode.Geocoder, logger *slog.Logger) *Service {
	return &Service{
		listings: listings,
		geocoder: geocoder,
		logger:   logger,
	}
}

// CloseToPoint returns all active listings within radiusMiles of the given
// reference point. Used for the authenticated "near me" variant, where the
// point comes from the user's stored coordinates.
func (s *Service) CloseToPoint(ctx context.Context, lat, lng, radiusMiles float64) (*CloseResult, error) {
	if radiusMiles < 0 {
		return nil, apperror.ValidationFailed("radiusInMiles", "radiusInMiles must not be negative")
	}

	active, err := s.active(ctx)
	if err != nil {
		return nil, err
	}

	matches := geo.NewIndex(active).Within(lat, lng, radiusMiles)
	s.logger.Debug("proximity search",
		slog.Float64("lat", lat),
		slog.Float64("lng", lng),
		slog.Float64("radiusMiles", radiusMiles),
		slog.Int("matches", len(matches)),
	)

	return &CloseResult{URL: geocode.MapURL(lat, lng), Matches: matches}, nil
}

// CloseToZip geocodes the zip code and returns all active listings within
// radiusMiles of it. No authentication involved — the reference point is
// the zip itself.
func (s *Service) CloseToZip(ctx context.Context, zip string, radiusMiles float64) (*CloseResult, error) {
	place, err := s.resolveZip(ctx, zip)
	if err != nil {
		return nil, err
	}
	return s.CloseToPoint(ctx, place.Point.Lat, place.Point.Lng, radiusMiles)
}

// Keyword returns active listings whose title contains the term,
// case-insensitively ("carrots" matches "carrots and beans").
func (s *Service) Keyword(ctx context.Context, term string) ([]model.Listing, error) {
	if strings.TrimSpace(term) == "" {
		return nil, apperror.ValidationFailed("searchTerm", "searchTerm is required")
	}

	active, err := s.active(ctx)
	if err != nil {
		return nil, err
	}

	return filterByTitle(active, term), nil
}

// KeywordClose intersects the keyword match with a zip-centred radius.
func (s *Service) KeywordClose(ctx context.Context, term, zip string, radiusMiles float64) (*CloseResult, error) {
	if strings.TrimSpace(term) == "" {
		return nil, apperror.ValidationFailed("searchTerm", "searchTerm is required")
	}

	result, err := s.CloseToZip(ctx, zip, radiusMiles)
	if err != nil {
		return nil, err
	}

	result.Matches = filterByTitle(result.Matches, term)
	return result, nil
}

// Dietary returns active listings whose dietary map agrees with every
// requested flag. A listing matches only when each requested key is
// present AND equal — an absent key satisfies nothing, because "the poster
// didn't say" is not the same as "no".
func (s *Service) Dietary(ctx context.Context, flags map[string]bool) ([]model.Listing, error) {
	if len(flags) == 0 {
		return nil, apperror.ValidationFailed("dietary", "at least one dietary flag is required")
	}

	active, err := s.active(ctx)
	if err != nil {
		return nil, err
	}

	return filterByDietary(active, flags), nil
}

// DietaryClose intersects the dietary filter with a zip-centred radius.
// Returns the bare list, not the {url, matches} wrapper.
func (s *Service) DietaryClose(ctx context.Context, flags map[string]bool, zip string, radiusMiles float64) ([]model.Listing, error) {
	if len(flags) == 0 {
		return nil, apperror.ValidationFailed("dietary", "at least one dietary flag is required")
	}

	result, err := s.CloseToZip(ctx, zip, radiusMiles)
	if err != nil {
		return nil, err
	}

	return filterByDietary(result.Matches, flags), nil
}

// HotZips groups active listings by zip code and ranks zips by listing
// count, descending. Ties break by zip ascending so the output is
// deterministic.
func (s *Service) HotZips(ctx context.Context) ([]model.ZipCount, error) {
	active, err := s.active(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, l := range active {
		counts[l.Location.Zip]++
	}

	hotzips := make([]model.ZipCount, 0, len(counts))
	for zip, count := range counts {
		hotzips = append(hotzips, model.ZipCount{Zip: zip, Count: count})
	}
	sort.Slice(hotzips, func(i, j int) bool {
		if hotzips[i].Count != hotzips[j].Count {
			return hotzips[i].Count > hotzips[j].Count
		}
		return hotzips[i].Zip < hotzips[j].Zip
	})

	return hotzips, nil
}

// active fetches all listings and drops the archived ones.
func (s *Service) active(ctx context.Context) ([]model.Listing, error) {
	all, err := s.listings.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading listings for search: %w", err)
	}

	active := make([]model.Listing, 0, len(all))
	for _, l := range all {
		if !l.Archived {
			active = append(active, l)
		}
	}
	return active, nil
}

// resolveZip geocodes a zip code to a reference point, mapping geocoder
// failures onto the error taxonomy: unknown zip → validation, provider
// down → upstream.
func (s *Service) resolveZip(ctx context.Context, zip string) (*geocode.Place, error) {
	if strings.TrimSpace(zip) == "" {
		return nil, apperror.ValidationFailed("zip", "zip is required")
	}

	place, err := s.geocoder.Locate(ctx, zip)
	if err != nil {
		if errors.Is(err, geocode.ErrNoResults) {
			return nil, apperror.ValidationFailed("zip", fmt.Sprintf("could not locate zip %s", zip))
		}
		s.logger.Error("geocoder lookup failed",
			slog.String("zip", zip),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("geocoder", err)
	}
	return place, nil
}

func filterByTitle(listings []model.Listing, term string) []model.Listing {
	term = strings.ToLower(term)
	matched := []model.Listing{}
	for _, l := range listings {
		if strings.Contains(strings.ToLower(l.Title), term) {
			matched = append(matched, l)
		}
	}
	return matched
}

func filterByDietary(listings []model.Listing, flags map[string]bool) []model.Listing {
	matched := []model.Listing{}
	for _, l := range listings {
		if dietaryMatches(l.Dietary, flags) {
			matched = append(matched, l)
		}
	}
	return matched
}

func dietaryMatches(dietary map[string]bool, flags map[string]bool) bool {
	for name, want := range flags {
		got, ok := dietary[name]
		if !ok || got != want {
			return false
		}
	}
	return true
}
