// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and write responses; services validate, enforce the
// rules, and orchestrate the repositories and the geocoder; repositories
// talk to the database. Each layer only receives interfaces for the layer
// below, so tests swap in fakes with plain function calls.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/geocode"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

// expirationPatchMessage is part of the public API contract: any attempt
// to patch the expiration field returns exactly this text.
const expirationPatchMessage = "Cannot adjust expiration date"

// patchableFields is the allow-list for PATCH /listings/:id. Anything not
// listed is rejected before the merge — immutability enforced up front, not
// by silently dropping fields.
var patchableFields = map[string]bool{
	"title":    true,
	"category": true,
	"dietary":  true,
	"user":     true,
}

// CreateListingInput is what a client supplies when posting a listing.
// Address may be empty, in which case the owner's stored address is
// geocoded instead.
type CreateListingInput struct {
	Title    string          `json:"title"`
	UserID   string          `json:"user"`
	Address  string          `json:"address"`
	Zip      string          `json:"zip"`
	Category string          `json:"category"`
	Dietary  map[string]bool `json:"dietary"`
}

// ListingService handles business logic for food listings.
type ListingService struct {
	listings repository.ListingRepository
	users    repository.UserRepository
	geocoder geocode.Geocoder
	logger   *slog.Logger
}

// NewListingService creates a ListingService.
func NewListingService(
	listings repository.ListingRepository,
	users repository.UserRepository,
	geocoder geocode.Geocoder,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listings: listings,
		users:    users,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Create validates, geocodes, and persists a new listing.
//
// The geocoder runs BEFORE anything touches the store: if the address
// can't be resolved, the create aborts and no partial record exists.
// Expiration is computed here (postedDate + retention window) and is
// immutable from this point on.
func (s *ListingService) Create(ctx context.Context, input CreateListingInput) (*model.Listing, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if input.UserID == "" {
		return nil, apperror.ValidationFailed("user", "user is required")
	}
	if input.Zip == "" {
		return nil, apperror.ValidationFailed("zip", "location zip is required")
	}

	// The owner must exist — also the fallback source for the address.
	owner, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(input.Address)
	if address == "" {
		address = owner.Location.Address
	}
	if address == "" {
		return nil, apperror.ValidationFailed("address", "no address given and owner has none stored")
	}

	place, err := s.locate(ctx, address)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	listing := &model.Listing{
		Title:  title,
		UserID: owner.ID,
		Location: model.Location{
			Address: address,
			Zip:     input.Zip,
			Lat:     &place.Point.Lat,
			Lng:     &place.Point.Lng,
		},
		Category:   strings.TrimSpace(input.Category),
		Dietary:    input.Dietary,
		PostedDate: now,
		Expiration: now.Add(model.RetentionWindow),
		Archived:   false,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		s.logger.Error("failed to create listing",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating listing: %w", err)
	}

	s.logger.Info("listing created",
		slog.String("id", listing.ID),
		slog.String("zip", listing.Location.Zip),
	)

	return listing, nil
}

// GetByID retrieves a listing, archived or not.
func (s *ListingService) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "listing ID is required")
	}
	return s.listings.GetByID(ctx, id)
}

// ListAll returns every listing.
func (s *ListingService) ListAll(ctx context.Context) ([]model.Listing, error) {
	return s.listings.ListAll(ctx)
}

// ListByUser returns all listings owned by the given user.
func (s *ListingService) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("user", "user ID is required")
	}
	return s.listings.ListByUser(ctx, userID)
}

// ListByZip returns all listings posted in the given zip code.
func (s *ListingService) ListByZip(ctx context.Context, zip string) ([]model.Listing, error) {
	if zip == "" {
		return nil, apperror.ValidationFailed("zip", "zip is required")
	}
	return s.listings.ListByZip(ctx, zip)
}

// Update applies a partial update to a listing.
//
// The patch arrives as raw JSON fields so the allow-list can see exactly
// what the client sent. An `expiration` key is rejected with the exact
// message the API promises; any other field outside the allow-list is a
// validation error too. Only then are the surviving fields decoded and
// merged over the stored record.
func (s *ListingService) Update(ctx context.Context, id string, fields map[string]json.RawMessage) (*model.Listing, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "listing ID is required")
	}
	if len(fields) == 0 {
		return nil, apperror.ValidationFailed("patch", "patch body must not be empty")
	}

	if _, ok := fields["expiration"]; ok {
		return nil, apperror.ValidationFailed("expiration", expirationPatchMessage)
	}
	for name := range fields {
		if !patchableFields[name] {
			return nil, apperror.ValidationFailed(name, fmt.Sprintf("field %q cannot be updated", name))
		}
	}

	var patch repository.ListingPatch
	if raw, ok := fields["title"]; ok {
		title, err := decodeString(raw, "title")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(title) == "" {
			return nil, apperror.ValidationFailed("title", "title must not be empty")
		}
		patch.Title = &title
	}
	if raw, ok := fields["category"]; ok {
		category, err := decodeString(raw, "category")
		if err != nil {
			return nil, err
		}
		patch.Category = &category
	}
	if raw, ok := fields["dietary"]; ok {
		var dietary map[string]bool
		if err := json.Unmarshal(raw, &dietary); err != nil {
			return nil, apperror.ValidationFailed("dietary", "dietary must be an object of booleans")
		}
		if dietary == nil {
			dietary = map[string]bool{}
		}
		patch.Dietary = dietary
	}
	if raw, ok := fields["user"]; ok {
		userID, err := decodeString(raw, "user")
		if err != nil {
			return nil, err
		}
		// Reassignment only to a user that exists.
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			return nil, err
		}
		patch.UserID = &userID
	}

	updated, err := s.listings.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("listing updated", slog.String("id", id))
	return updated, nil
}

// Archive soft-deletes a listing and returns the archived record.
func (s *ListingService) Archive(ctx context.Context, id string) (*model.Listing, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "listing ID is required")
	}

	archived, err := s.listings.Archive(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("listing archived", slog.String("id", id))
	return archived, nil
}

// locate geocodes an address, mapping failures to the error taxonomy.
func (s *ListingService) locate(ctx context.Context, address string) (*geocode.Place, error) {
	place, err := s.geocoder.Locate(ctx, address)
	if err != nil {
		if errors.Is(err, geocode.ErrNoResults) {
			return nil, apperror.ValidationFailed("address", fmt.Sprintf("could not locate address %q", address))
		}
		s.logger.Error("geocoder lookup failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("geocoder", err)
	}
	return place, nil
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be a string", field))
	}
	return s, nil
}
