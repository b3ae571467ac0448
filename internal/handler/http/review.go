package http

import (
	"net/http"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/service"
	"github.com/evotags/evotags/pkg/httputil"
	"github.com/evotags/evotags/pkg/validator"
)

// ReviewHandler serves review endpoints.
type ReviewHandler struct {
	reviews  ReviewService
	feed     FeedService
	statuses StatusService
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(reviews ReviewService, feed FeedService, statuses StatusService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, feed: feed, statuses: statuses}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON body of POST /api/reviews. Keys keep the
// mini-app's camelCase names. Fields carry no validation tags: the review
// service checks the credential before it looks at the target or the text.
type SubmitReviewRequest struct {
	TelegramData  string `json:"telegramData"`
	TargetUserID  string `json:"targetUserId"`
	TalentsAnswer string `json:"talentsAnswer"`
	ClientAnswer  string `json:"clientAnswer"`
}

// SubmitReviewResponse is the data of a successful submission.
type SubmitReviewResponse struct {
	Success bool `json:"success"`
	*domain.SubmitResult
}

// --- Handlers ---

// Submit handles POST /api/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.reviews.Submit(r.Context(), service.SubmitInput{
		InitData:      req.TelegramData,
		TargetID:      req.TargetUserID,
		TalentsAnswer: req.TalentsAnswer,
		ClientAnswer:  req.ClientAnswer,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, SubmitReviewResponse{Success: true, SubmitResult: res})
}

// Feed handles GET /api/reviews/feed
func (h *ReviewHandler) Feed(w http.ResponseWriter, r *http.Request) {
	items, err := h.feed.Feed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, items)
}

// Status handles POST /api/reviews/status
func (h *ReviewHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	statuses, err := h.statuses.Statuses(r.Context(), req.TelegramData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, statuses)
}
