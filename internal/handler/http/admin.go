package http

import (
	"net/http"

	"github.com/evotags/evotags/pkg/httputil"
)

// AdminHandler serves the test data endpoints.
type AdminHandler struct {
	admin AdminService
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(admin AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Seed handles POST /api/admin/seed
func (h *AdminHandler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.Seed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// PurgeTestData handles DELETE /api/admin/test-data
func (h *AdminHandler) PurgeTestData(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.Purge(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}
