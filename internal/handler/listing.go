package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/service"
)

// ListingHandler exposes listing CRUD over HTTP. It parses requests,
// delegates to the ListingService, and serializes the result — no business
// rules live here.
type ListingHandler struct {
	listings *service.ListingService
	logger   *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(listings *service.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, logger: logger}
}

// createListingRequest is the wire shape of POST /listings: the location
// arrives nested, matching the stored listing shape.
type createListingRequest struct {
	Title    string `json:"title"`
	UserID   string `json:"user"`
	Location struct {
		Address string `json:"address"`
		Zip     string `json:"zip"`
	} `json:"location"`
	Category string          `json:"category"`
	Dietary  map[string]bool `json:"dietary"`
}

// HandleCreate creates a listing.
//
// HTTP: POST /api/v1/listings (auth required)
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	listing, err := h.listings.Create(r.Context(), service.CreateListingInput{
		Title:    req.Title,
		UserID:   req.UserID,
		Address:  req.Location.Address,
		Zip:      req.Location.Zip,
		Category: req.Category,
		Dietary:  req.Dietary,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listing)
}

// HandleList returns all listings.
//
// HTTP: GET /api/v1/listings (auth required)
func (h *ListingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleGetByID returns one listing.
//
// HTTP: GET /api/v1/listings/{id} (auth required)
func (h *ListingHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleUpdate applies a partial update.
//
// HTTP: PATCH /api/v1/listings/{id} (auth required)
//
// The body is decoded into raw fields rather than a struct so the service
// can validate exactly which keys the client sent — a struct decode would
// silently drop a forbidden `expiration` field instead of rejecting it.
func (h *ListingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	listing, err := h.listings.Update(r.Context(), r.PathValue("id"), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleDelete archives a listing (soft delete) and returns the archived
// record — clients confirm by checking `archived: true` in the body.
//
// HTTP: DELETE /api/v1/listings/{id} (auth required)
func (h *ListingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleListByUser returns the listings owned by a user.
//
// HTTP: GET /api/v1/listings/user/{userId} (no auth)
func (h *ListingHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleListByZip returns the listings posted in a zip code.
//
// HTTP: GET /api/v1/listings/zip/{zip} (no auth)
func (h *ListingHandler) HandleListByZip(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListByZip(r.Context(), r.PathValue("zip"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}
