package handler_test

// Shared fixtures for the handler tests: in-memory repositories and a
// canned geocoder, so the HTTP layer can be exercised without SQLite or a
// network connection.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/geocode"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

type memListings struct {
	byID map[string]model.Listing
	seq  int
}

func newMemListings() *memListings {
	return &memListings{byID: make(map[string]model.Listing)}
}

func (m *memListings) Create(_ context.Context, listing *model.Listing) error {
	m.seq++
	listing.ID = fmt.Sprintf("listing-%03d", m.seq)
	m.byID[listing.ID] = *listing
	return nil
}

func (m *memListings) GetByID(_ context.Context, id string) (*model.Listing, error) {
	listing, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("listing", id)
	}
	return &listing, nil
}

func (m *memListings) ListAll(context.Context) ([]model.Listing, error) {
	all := []model.Listing{}
	for _, l := range m.byID {
		all = append(all, l)
	}
	return all, nil
}

func (m *memListings) ListByUser(_ context.Context, userID string) ([]model.Listing, error) {
	owned := []model.Listing{}
	for _, l := range m.byID {
		if l.UserID == userID {
			owned = append(owned, l)
		}
	}
	return owned, nil
}

func (m *memListings) ListByZip(_ context.Context, zip string) ([]model.Listing, error) {
	matched := []model.Listing{}
	for _, l := range m.byID {
		if l.Location.Zip == zip {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func (m *memListings) Update(_ context.Context, id string, patch repository.ListingPatch) (*model.Listing, error) {
	listing, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("listing", id)
	}
	if patch.Title != nil {
		listing.Title = *patch.Title
	}
	if patch.Category != nil {
		listing.Category = *patch.Category
	}
	if patch.Dietary != nil {
		listing.Dietary = patch.Dietary
	}
	if patch.UserID != nil {
		listing.UserID = *patch.UserID
	}
	m.byID[id] = listing
	return &listing, nil
}

func (m *memListings) Archive(_ context.Context, id string) (*model.Listing, error) {
	listing, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("listing", id)
	}
	listing.Archived = true
	m.byID[id] = listing
	return &listing, nil
}

type memUsers struct {
	byID map[string]model.User
	seq  int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]model.User)}
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	for _, u := range m.byID {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	m.seq++
	user.ID = fmt.Sprintf("user-%03d", m.seq)
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &user, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

// cannedGeocoder resolves everything to the same point. Good enough for
// handler tests — geocoding accuracy is covered in the search package.
type cannedGeocoder struct {
	lat, lng float64
	err      error
}

func (g *cannedGeocoder) Locate(context.Context, string) (*geocode.Place, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &geocode.Place{
		Point:  geocode.Point{Lat: g.lat, Lng: g.lng},
		MapURL: geocode.MapURL(g.lat, g.lng),
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedOwner registers a user the listing tests can post as.
func seedOwner(t *testing.T, users *memUsers) *model.User {
	t.Helper()
	lat, lng := 45.5317, -122.6936
	user := &model.User{
		Username:     "wookie",
		Email:        "feet@shoes.com",
		Role:         "User",
		PasswordHash: "$2a$04$notarealhash",
		Location: model.Location{
			Address: "1919 NW Quimby St., Portland, Or",
			Zip:     "97209",
			Lat:     &lat,
			Lng:     &lng,
		},
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding owner: %v", err)
	}
	return user
}
