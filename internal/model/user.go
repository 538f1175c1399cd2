// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account in the food-share marketplace.
//
// The user's stored location is geocoded at signup, because proximity
// search ("what's near me?") resolves its reference point from the
// authenticated user's coordinates without a second geocoder round trip.
//
// WHY PasswordHash HAS `json:"-"`?
// The dash tells encoding/json to never serialize the field. The bcrypt
// hash must not leak into any API response, and excluding it at the type
// level is safer than remembering to strip it in every handler.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Location     Location  `json:"location"`
	CreatedAt    time.Time `json:"createdAt"`
}
