package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/model"
	"github.com/miniponz/food-share-application/internal/repository"
)

// UserStore implements repository.UserRepository over the shared DB.
type UserStore struct {
	db *DB
}

// compile-time check
var _ repository.UserRepository = (*UserStore)(nil)

const userColumns = `id, username, email, role, password_hash, address, zip, lat, lng, created_at`

// Create inserts a new user account. Usernames are unique — a duplicate
// signup surfaces as a Conflict rather than a raw driver error.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.Location.Address,
		user.Location.Zip,
		nullFloat(user.Location.Lat),
		nullFloat(user.Location.Lng),
		user.CreatedAt,
	)
	if err != nil {
		// modernc.org/sqlite reports constraint violations in the error
		// text; there is no exported sentinel to errors.Is against.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.scanUserRow(s.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by their unique username (signin path).
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.scanUserRow(s.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return user, nil
}

func (s *UserStore) scanUserRow(row *sql.Row) (*model.User, error) {
	var (
		user     model.User
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.Location.Address,
		&user.Location.Zip,
		&lat,
		&lng,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		user.Location.Lat = &lat.Float64
		user.Location.Lng = &lng.Float64
	}
	return &user, nil
}
