package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evotags/evotags/pkg/httputil"
	"github.com/evotags/evotags/pkg/validator"
)

// AccountHandler serves account endpoints.
type AccountHandler struct {
	accounts AccountService
	reviews  ReviewService
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(accounts AccountService, reviews ReviewService) *AccountHandler {
	return &AccountHandler{accounts: accounts, reviews: reviews}
}

// List handles GET /api/users
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, accounts)
}

// Me handles POST /api/users/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.accounts.Me(r.Context(), req.TelegramData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, profile)
}

// Reviews handles GET /api/users/{userId}/reviews
func (h *AccountHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	views, err := h.reviews.ListForTarget(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, views)
}
