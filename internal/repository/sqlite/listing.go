package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

// ListingStore implements repository.ListingRepository over the shared DB.
type ListingStore struct {
	db *DB
}

// Compile-time check. If a method goes missing, the build breaks here
// instead of at a distant call site.
var _ repository.ListingRepository = (*ListingStore)(nil)

const listingColumns = `id, title, user_id, address, zip, lat, lng, category, dietary, posted_date, expiration, archived`

// Create inserts a new listing. The caller (service layer) has already
// geocoded the location and computed postedDate/expiration; this method
// only assigns the ID and persists the row. Taking a pointer lets the
// generated ID flow back to the caller.
func (s *ListingStore) Create(ctx context.Context, listing *model.Listing) error {
	listing.ID = xid.New().String()

	dietary, err := marshalDietary(listing.Dietary)
	if err != nil {
		return fmt.Errorf("sqlite: encoding dietary map: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID,
		listing.Title,
		listing.UserID,
		listing.Location.Address,
		listing.Location.Zip,
		nullFloat(listing.Location.Lat),
		nullFloat(listing.Location.Lng),
		listing.Category,
		dietary,
		listing.PostedDate,
		listing.Expiration,
		listing.Archived,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating listing: %w", err)
	}

	return nil
}

// GetByID retrieves a single listing, archived or not.
func (s *ListingStore) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)

	listing, err := scanListing(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("listing", id)
		}
		return nil, fmt.Errorf("sqlite: getting listing %s: %w", id, err)
	}
	return listing, nil
}

// ListAll returns every listing, oldest first. xid IDs sort by creation
// time, so ordering by id keeps responses stable across calls.
func (s *ListingStore) ListAll(ctx context.Context) ([]model.Listing, error) {
	return s.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY id`)
}

// ListByUser returns all listings owned by the given user.
func (s *ListingStore) ListByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	return s.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE user_id = ? ORDER BY id`, userID)
}

// ListByZip returns all listings posted in the given zip code.
func (s *ListingStore) ListByZip(ctx context.Context, zip string) ([]model.Listing, error) {
	return s.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE zip = ? ORDER BY id`, zip)
}

// Update merges the patch over the stored listing and returns the result.
//
// The patch has passed the allow-list check upstream, so only title,
// category, dietary, and owner can arrive here. Location, postedDate, and
// expiration columns are never part of the UPDATE statement — immutability
// is enforced by the SQL itself, not just by validation.
//
// Concurrent patches to the same row are last-write-wins: SQLite holds a
// single writer lock, so the two UPDATEs serialize.
func (s *ListingStore) Update(ctx context.Context, id string, patch repository.ListingPatch) (*model.Listing, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Category != nil {
		existing.Category = *patch.Category
	}
	if patch.Dietary != nil {
		existing.Dietary = patch.Dietary
	}
	if patch.UserID != nil {
		existing.UserID = *patch.UserID
	}

	dietary, err := marshalDietary(existing.Dietary)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding dietary map: %w", err)
	}

	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE listings SET title = ?, category = ?, dietary = ?, user_id = ? WHERE id = ?`,
		existing.Title, existing.Category, dietary, existing.UserID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating listing %s: %w", id, err)
	}
	if err := requireRowAffected(result, "listing", id); err != nil {
		return nil, err
	}

	return existing, nil
}

// Archive soft-deletes a listing: the row stays, archived flips to true,
// and the updated record is returned so the API can echo it back.
func (s *ListingStore) Archive(ctx context.Context, id string) (*model.Listing, error) {
	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE listings SET archived = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: archiving listing %s: %w", id, err)
	}
	if err := requireRowAffected(result, "listing", id); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// queryListings runs a multi-row listing SELECT and scans the results.
func (s *ListingStore) queryListings(ctx context.Context, query string, args ...any) ([]model.Listing, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing query: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning listing row: %w", err)
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating listings: %w", err)
	}

	return listings, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows so scanListing can
// serve single- and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (*model.Listing, error) {
	var (
		listing    model.Listing
		lat, lng   sql.NullFloat64
		dietary    string
		posted     time.Time
		expiration time.Time
	)

	err := s.Scan(
		&listing.ID,
		&listing.Title,
		&listing.UserID,
		&listing.Location.Address,
		&listing.Location.Zip,
		&lat,
		&lng,
		&listing.Category,
		&dietary,
		&posted,
		&expiration,
		&listing.Archived,
	)
	if err != nil {
		return nil, err
	}

	listing.PostedDate = posted
	listing.Expiration = expiration
	if lat.Valid && lng.Valid {
		listing.Location.Lat = &lat.Float64
		listing.Location.Lng = &lng.Float64
	}
	if err := json.Unmarshal([]byte(dietary), &listing.Dietary); err != nil {
		return nil, fmt.Errorf("decoding dietary map: %w", err)
	}

	return &listing, nil
}

func marshalDietary(dietary map[string]bool) (string, error) {
	if dietary == nil {
		return "{}", nil
	}
	b, err := json.Marshal(dietary)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// nullFloat converts an optional coordinate into its SQL representation.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// requireRowAffected translates "UPDATE matched nothing" into a NotFound.
func requireRowAffected(result sql.Result, resource, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
