package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/geocode"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

// ========================================================================
// FAKES
// ========================================================================

// fakeListingRepo is an in-memory repository.ListingRepository. Stored
// values are copies so tests can't accidentally share state with the
// service through pointers.
type fakeListingRepo struct {
	listings map[string]*model.Listing
	nextID   int
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[string]*model.Listing)}
}

func (f *fakeListingRepo) Create(_ context.Context, listing *model.Listing) error {
	f.nextID++
	listing.ID = fmt.Sprintf("listing-%d", f.nextID)
	stored := *listing
	f.listings[listing.ID] = &stored
	return nil
}

func (f *fakeListingRepo) GetByID(_ context.Context, id string) (*model.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, apperror.NotFound("listing", id)
	}
	result := *l
	return &result, nil
}

func (f *fakeListingRepo) ListAll(context.Context) ([]model.Listing, error) {
	all := make([]model.Listing, 0, len(f.listings))
	for _, l := range f.listings {
		all = append(all, *l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (f *fakeListingRepo) ListByUser(_ context.Context, userID string) ([]model.Listing, error) {
	matched := []model.Listing{}
	all, _ := f.ListAll(context.Background())
	for _, l := range all {
		if l.UserID == userID {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func (f *fakeListingRepo) ListByZip(_ context.Context, zip string) ([]model.Listing, error) {
	matched := []model.Listing{}
	all, _ := f.ListAll(context.Background())
	for _, l := range all {
		if l.Location.Zip == zip {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func (f *fakeListingRepo) Update(_ context.Context, id string, patch repository.ListingPatch) (*model.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, apperror.NotFound("listing", id)
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Category != nil {
		l.Category = *patch.Category
	}
	if patch.Dietary != nil {
		l.Dietary = patch.Dietary
	}
	if patch.UserID != nil {
		l.UserID = *patch.UserID
	}
	result := *l
	return &result, nil
}

func (f *fakeListingRepo) Archive(_ context.Context, id string) (*model.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, apperror.NotFound("listing", id)
	}
	l.Archived = true
	result := *l
	return &result, nil
}

// fakeUserRepo holds users keyed by both ID and username.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

// fixedGeocoder returns the same point for every query, or fails.
type fixedGeocoder struct {
	lat, lng float64
	err      error
}

func (g *fixedGeocoder) Locate(_ context.Context, query string) (*geocode.Place, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &geocode.Place{
		Point:  geocode.Point{Lat: g.lat, Lng: g.lng},
		MapURL: geocode.MapURL(g.lat, g.lng),
	}, nil
}

// ========================================================================
// HELPERS
// ========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestListingService(t *testing.T) (*ListingService, *fakeListingRepo, *fakeUserRepo) {
	t.Helper()
	listings := newFakeListingRepo()
	users := newFakeUserRepo()
	geocoder := &fixedGeocoder{lat: 45.5317, lng: -122.6936}
	svc := NewListingService(listings, users, geocoder, testLogger())
	return svc, listings, users
}

func seedUser(t *testing.T, users *fakeUserRepo) *model.User {
	t.Helper()
	user := &model.User{
		Username: "wookie",
		Role:     "User",
		Location: model.Location{Address: "1919 NW Quimby St., Portland, Or", Zip: "97209"},
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return user
}

func rawPatch(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		t.Fatalf("bad patch fixture: %v", err)
	}
	return fields
}

// ========================================================================
// CREATE
// ========================================================================

func TestCreateListing(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)

	listing, err := svc.Create(context.Background(), CreateListingInput{
		Title:    "carrots",
		UserID:   owner.ID,
		Address:  "1919 NW Quimby St., Portland, Or",
		Zip:      "97209",
		Category: "produce",
		Dietary:  map[string]bool{"dairy": true, "gluten": true},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if listing.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if listing.Archived {
		t.Error("new listing is archived")
	}
	if listing.PostedDate.IsZero() || listing.Expiration.IsZero() {
		t.Error("postedDate/expiration not set")
	}
	if want := listing.PostedDate.Add(model.RetentionWindow); !listing.Expiration.Equal(want) {
		t.Errorf("Expiration = %v, want postedDate + retention window (%v)", listing.Expiration, want)
	}
	if !listing.Location.HasCoordinates() {
		t.Error("listing was not geocoded at create")
	}
}

func TestCreateListing_UsesOwnersAddressWhenMissing(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)

	listing, err := svc.Create(context.Background(), CreateListingInput{
		Title:  "beans",
		UserID: owner.ID,
		Zip:    "97209",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if listing.Location.Address != owner.Location.Address {
		t.Errorf("Address = %q, want owner's %q", listing.Location.Address, owner.Location.Address)
	}
}

func TestCreateListing_GeocodeFailureAborts(t *testing.T) {
	listings := newFakeListingRepo()
	users := newFakeUserRepo()
	svc := NewListingService(listings, users,
		&fixedGeocoder{err: errors.New("connection refused")}, testLogger())
	owner := seedUser(t, users)

	_, err := svc.Create(context.Background(), CreateListingInput{
		Title:  "carrots",
		UserID: owner.ID,
		Zip:    "97209",
	})
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("Create() error = %v, want ErrUpstream", err)
	}

	// Nothing persisted — the create aborted before the store.
	all, _ := listings.ListAll(context.Background())
	if len(all) != 0 {
		t.Errorf("store has %d listings after failed geocode, want 0", len(all))
	}
}

func TestCreateListing_UngeocodableAddress(t *testing.T) {
	listings := newFakeListingRepo()
	users := newFakeUserRepo()
	svc := NewListingService(listings, users,
		&fixedGeocoder{err: fmt.Errorf("stub: %w", geocode.ErrNoResults)}, testLogger())
	owner := seedUser(t, users)

	_, err := svc.Create(context.Background(), CreateListingInput{
		Title:   "carrots",
		UserID:  owner.ID,
		Address: "nowhere at all",
		Zip:     "00000",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create() error = %v, want ErrValidation", err)
	}
}

func TestCreateListing_Validation(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)

	tests := []struct {
		name  string
		input CreateListingInput
	}{
		{"missing title", CreateListingInput{UserID: owner.ID, Zip: "97209"}},
		{"missing user", CreateListingInput{Title: "carrots", Zip: "97209"}},
		{"missing zip", CreateListingInput{Title: "carrots", UserID: owner.ID}},
		{"unknown owner", CreateListingInput{Title: "carrots", UserID: "ghost", Zip: "97209"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.input); err == nil {
				t.Error("Create() accepted invalid input")
			}
		})
	}
}

// ========================================================================
// UPDATE
// ========================================================================

func createSeedListing(t *testing.T, svc *ListingService, ownerID string) *model.Listing {
	t.Helper()
	listing, err := svc.Create(context.Background(), CreateListingInput{
		Title:    "carrots",
		UserID:   ownerID,
		Address:  "1919 NW Quimby St., Portland, Or",
		Zip:      "97209",
		Category: "produce",
		Dietary:  map[string]bool{"dairy": true, "gluten": true},
	})
	if err != nil {
		t.Fatalf("seeding listing: %v", err)
	}
	return listing
}

func TestUpdate_PatchesAllowedFields(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)
	listing := createSeedListing(t, svc, owner.ID)

	updated, err := svc.Update(context.Background(), listing.ID,
		rawPatch(t, `{"title":"ham","category":"meat","dietary":{"dairy":false,"gluten":true}}`))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Title != "ham" || updated.Category != "meat" {
		t.Errorf("updated = %q/%q, want ham/meat", updated.Title, updated.Category)
	}
	if updated.Dietary["dairy"] {
		t.Error("Dietary[dairy] still true after patch")
	}
	if !updated.Expiration.Equal(listing.Expiration) {
		t.Error("Expiration changed by a patch that never mentioned it")
	}
}

func TestUpdate_RejectsExpirationPatch(t *testing.T) {
	svc, listings, users := newTestListingService(t)
	owner := seedUser(t, users)
	listing := createSeedListing(t, svc, owner.ID)

	_, err := svc.Update(context.Background(), listing.ID,
		rawPatch(t, `{"expiration":"should reject"}`))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Update() error is not an AppError: %v", err)
	}
	if appErr.Message != "Cannot adjust expiration date" {
		t.Errorf("message = %q, want %q", appErr.Message, "Cannot adjust expiration date")
	}

	// The stored record must be untouched.
	stored, _ := listings.GetByID(context.Background(), listing.ID)
	if stored.Title != "carrots" || !stored.Expiration.Equal(listing.Expiration) {
		t.Error("rejected patch still altered the stored record")
	}
}

func TestUpdate_RejectsExpirationEvenWithValidFields(t *testing.T) {
	svc, listings, users := newTestListingService(t)
	owner := seedUser(t, users)
	listing := createSeedListing(t, svc, owner.ID)

	_, err := svc.Update(context.Background(), listing.ID,
		rawPatch(t, `{"title":"ham","expiration":"2099-01-01T00:00:00Z"}`))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}

	stored, _ := listings.GetByID(context.Background(), listing.ID)
	if stored.Title != "carrots" {
		t.Error("partial patch applied despite the forbidden field")
	}
}

func TestUpdate_RejectsUnknownAndForbiddenFields(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)
	listing := createSeedListing(t, svc, owner.ID)

	for _, body := range []string{
		`{"postedDate":"2020-01-01T00:00:00Z"}`,
		`{"location":{"zip":"00000"}}`,
		`{"archived":false}`,
		`{"_id":"new-id"}`,
		`{"sparkles":true}`,
	} {
		if _, err := svc.Update(context.Background(), listing.ID, rawPatch(t, body)); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Update(%s) error = %v, want ErrValidation", body, err)
		}
	}
}

func TestUpdate_ReassignOwner(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)
	listing := createSeedListing(t, svc, owner.ID)

	other := &model.User{Username: "solo"}
	if err := users.Create(context.Background(), other); err != nil {
		t.Fatalf("creating second user: %v", err)
	}

	updated, err := svc.Update(context.Background(), listing.ID,
		rawPatch(t, fmt.Sprintf(`{"user":%q}`, other.ID)))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.UserID != other.ID {
		t.Errorf("UserID = %q, want %q", updated.UserID, other.ID)
	}

	// Unknown target user is rejected.
	if _, err := svc.Update(context.Background(), listing.ID,
		rawPatch(t, `{"user":"ghost"}`)); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() to ghost user error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestListingService(t)
	_, err := svc.Update(context.Background(), "missing", rawPatch(t, `{"title":"ham"}`))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

// ========================================================================
// ARCHIVE / READS
// ========================================================================

func TestArchive_SoftDeletes(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)
	listing := createSeedListing(t, svc, owner.ID)

	archived, err := svc.Archive(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if archived.ID != listing.ID || !archived.Archived {
		t.Errorf("Archive() = %+v, want same id with archived=true", archived)
	}

	// Still fetchable afterwards.
	fetched, err := svc.GetByID(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("GetByID() after archive error = %v", err)
	}
	if !fetched.Archived {
		t.Error("archived flag lost")
	}
}

func TestListByUser_ReturnsOnlyOwned(t *testing.T) {
	svc, _, users := newTestListingService(t)
	owner := seedUser(t, users)
	other := &model.User{Username: "solo", Location: model.Location{Address: "somewhere", Zip: "97214"}}
	if err := users.Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		createSeedListing(t, svc, owner.ID)
	}
	if _, err := svc.Create(context.Background(), CreateListingInput{
		Title: "ham", UserID: other.ID, Zip: "97214",
	}); err != nil {
		t.Fatal(err)
	}

	mine, err := svc.ListByUser(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("ListByUser() = %d listings, want 3", len(mine))
	}
	for _, l := range mine {
		if l.UserID != owner.ID {
			t.Errorf("listing %s belongs to %s", l.ID, l.UserID)
		}
	}
}
