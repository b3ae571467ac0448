package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evotags/evotags/internal/telegram"
	apperrors "github.com/evotags/evotags/pkg/errors"
	"github.com/evotags/evotags/pkg/logger"
)

const (
	// PhotoMaxAge is how long clients may cache a proxied photo.
	PhotoMaxAge        = 24 * time.Hour
	defaultContentType = "image/jpeg"
)

// MediaHandler proxies Telegram profile photos so the bot token never
// reaches the client.
type MediaHandler struct {
	photos PhotoSource
}

// NewMediaHandler creates a new media HTTP handler.
func NewMediaHandler(photos PhotoSource) *MediaHandler {
	return &MediaHandler{photos: photos}
}

// TelegramPhoto handles GET /api/media/telegram-photo/{fileId}
func (h *MediaHandler) TelegramPhoto(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	if fileID == "" {
		writeError(w, r, apperrors.InvalidInput("fileId is required"))
		return
	}

	file, err := h.photos.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, r, photoErr(fileID, err))
		return
	}

	content, err := h.photos.OpenFile(r.Context(), file.FilePath)
	if err != nil {
		writeError(w, r, photoErr(fileID, err))
		return
	}
	defer content.Body.Close()

	contentType := content.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set("ETag", strconv.Quote(fileID))
	if content.ContentLength > 0 {
		hdr.Set("Content-Length", strconv.FormatInt(content.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content.Body); err != nil {
		logger.FromContext(r.Context()).WarnContext(r.Context(), "photo stream interrupted",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}

func photoErr(fileID string, err error) error {
	if errors.Is(err, telegram.ErrNotFound) {
		return apperrors.NotFound("file", fileID)
	}
	return apperrors.New("UPSTREAM_UNAVAILABLE", "photo could not be fetched", http.StatusBadGateway,
		fmt.Errorf("fetch photo %s: %w", fileID, err))
}
