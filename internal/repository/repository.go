// Package repository declares the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite);
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/miniponz/food-share-application/internal/model"
)

// ListingPatch is a partial update for a listing. Nil fields are left
// untouched; the service layer has already validated the patch against
// the allow-list before it reaches a repository.
type ListingPatch struct {
	Title    *string
	Category *string
	Dietary  map[string]bool
	UserID   *string
}

// ListingRepository persists listings. Delete is deliberately absent:
// listings are only ever archived, never removed.
type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	ListAll(ctx context.Context) ([]model.Listing, error)
	ListByUser(ctx context.Context, userID string) ([]model.Listing, error)
	ListByZip(ctx context.Context, zip string) ([]model.Listing, error)
	Update(ctx context.Context, id string, patch ListingPatch) (*model.Listing, error)
	Archive(ctx context.Context, id string) (*model.Listing, error)
}

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
