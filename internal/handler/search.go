package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/miniponz/food-share-application/internal/apperror"
	"github.com/miniponz/food-share-application/internal/auth"
	"github.com/miniponz/food-share-application/internal/search"
	"github.com/miniponz/food-share-application/internal/service"
)

// SearchHandler exposes the derived views: proximity, keyword, dietary,
// and hotzips. It resolves the authenticated user (for the "near me"
// variant) through the AuthService and hands everything else to the
// search service.
type SearchHandler struct {
	search *search.Service
	users  *service.AuthService
	logger *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(searchSvc *search.Service, users *service.AuthService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{search: searchSvc, users: users, logger: logger}
}

// HandleClose returns listings within a radius of the authenticated
// user's stored location.
//
// HTTP: GET /api/v1/listings/close?radiusInMiles=N (auth required)
func (h *SearchHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	radius, err := radiusParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}
	user, err := h.users.Verify(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !user.Location.HasCoordinates() {
		writeError(w, apperror.ValidationFailed("location", "user has no stored location"))
		return
	}

	result, err := h.search.CloseToPoint(r.Context(), *user.Location.Lat, *user.Location.Lng, radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCloseZip returns listings within a radius of an arbitrary zip.
//
// HTTP: GET /api/v1/listings/close/zip?zip=Z&radiusInMiles=N (no auth)
func (h *SearchHandler) HandleCloseZip(w http.ResponseWriter, r *http.Request) {
	radius, err := radiusParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.search.CloseToZip(r.Context(), r.URL.Query().Get("zip"), radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleHotZips returns zip codes ranked by listing count.
//
// HTTP: GET /api/v1/listings/hotzips (no auth)
func (h *SearchHandler) HandleHotZips(w http.ResponseWriter, r *http.Request) {
	hotzips, err := h.search.HotZips(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hotzips)
}

// HandleKeyword returns listings whose title contains the search term.
//
// HTTP: GET /api/v1/listings/keyword?searchTerm=S (no auth)
func (h *SearchHandler) HandleKeyword(w http.ResponseWriter, r *http.Request) {
	listings, err := h.search.Keyword(r.Context(), r.URL.Query().Get("searchTerm"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleKeywordClose intersects the keyword match with a zip radius.
//
// HTTP: GET /api/v1/listings/keyword/close?searchTerm=S&zip=Z&radiusInMiles=N
func (h *SearchHandler) HandleKeywordClose(w http.ResponseWriter, r *http.Request) {
	radius, err := radiusParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	result, err := h.search.KeywordClose(r.Context(), q.Get("searchTerm"), q.Get("zip"), radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleDietary filters listings by dietary flags given as query
// parameters, e.g. ?dairy=true&gluten=true.
//
// HTTP: GET /api/v1/listings/dietary?<flag>=bool... (no auth)
func (h *SearchHandler) HandleDietary(w http.ResponseWriter, r *http.Request) {
	flags, err := dietaryParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listings, err := h.search.Dietary(r.Context(), flags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleDietaryClose intersects the dietary filter with a zip radius.
// Returns the bare list like HandleDietary — only the close family wraps.
//
// HTTP: GET /api/v1/listings/dietary/close?<flag>=bool...&zip=Z&radiusInMiles=N
func (h *SearchHandler) HandleDietaryClose(w http.ResponseWriter, r *http.Request) {
	flags, err := dietaryParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	radius, err := radiusParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listings, err := h.search.DietaryClose(r.Context(), flags, r.URL.Query().Get("zip"), radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// radiusParam parses the radiusInMiles query parameter.
func radiusParam(r *http.Request) (float64, error) {
	raw := r.URL.Query().Get("radiusInMiles")
	if raw == "" {
		return 0, apperror.ValidationFailed("radiusInMiles", "radiusInMiles is required")
	}
	radius, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("radiusInMiles", "radiusInMiles must be a number")
	}
	return radius, nil
}

// reservedParams are query keys that are never dietary flags.
var reservedParams = map[string]bool{
	"zip":           true,
	"radiusInMiles": true,
}

// dietaryParams collects every non-reserved query parameter as a boolean
// dietary flag.
func dietaryParams(r *http.Request) (map[string]bool, error) {
	flags := make(map[string]bool)
	for name, values := range r.URL.Query() {
		if reservedParams[name] || len(values) == 0 {
			continue
		}
		value, err := strconv.ParseBool(values[0])
		if err != nil {
			return nil, apperror.ValidationFailed(name, name+" must be true or false")
		}
		flags[name] = value
	}
	return flags, nil
}
