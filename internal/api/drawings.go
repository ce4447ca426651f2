package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/feed"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

// multipartOverhead is the allowance for form fields and part headers on
// top of the image itself.
const multipartOverhead = 1 << 20

// DrawingHandler handles drawing endpoints.
type DrawingHandler struct {
	*Handler
	hub       *feed.Hub
	clock     clockwork.Clock
	maxUpload int64
}

// NewDrawingHandler creates a drawing handler. hub may be nil when the live
// feed is disabled; clock may be nil for the real clock.
func NewDrawingHandler(base *Handler, hub *feed.Hub, clock clockwork.Clock, maxUpload int64) *DrawingHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxUpload <= 0 || maxUpload > domain.MaxImageBytes {
		maxUpload = domain.MaxImageBytes
	}
	return &DrawingHandler{Handler: base, hub: hub, clock: clock, maxUpload: maxUpload}
}

// RegisterRoutes registers drawing routes.
func (h *DrawingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/drawings", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		if h.hub != nil {
			r.Get("/live", h.hub.ServeHTTP)
		}
		r.Get("/{id}", h.Get)
		r.Get("/{id}/image", h.Image)
	})
}

// List returns the most recent drawings, newest first.
func (h *DrawingHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query()["limit"])

	drawings, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list drawings", "error", err, "limit", limit)
		Error(w, http.StatusInternalServerError, "failed to list drawings")
		return
	}

	base := h.baseURL(r)
	views := make([]domain.DrawingView, 0, len(drawings))
	for _, d := range drawings {
		views = append(views, d.View(base))
	}
	JSON(w, http.StatusOK, map[string]interface{}{"data": views})
}

// Get returns one drawing.
func (h *DrawingHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.lookup(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, d.View(h.baseURL(r)))
}

// Create validates an uploaded drawing, stores its image and records it.
// Nothing is persisted unless every field is valid.
func (h *DrawingHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	v := domain.NewValidationError()
	data, ext := h.parseUpload(r, v)
	if v.HasErrors() {
		slog.Info("Rejected drawing upload", "errors", v.Fields)
		JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"message": v.Error(),
			"errors":  v.Fields,
		})
		return
	}

	ctx := r.Context()
	imagePath, err := h.blobs.Store(ctx, data, "upload"+ext)
	if err != nil {
		slog.Error("Failed to store drawing image", "error", err)
		Error(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	drawing := &domain.Drawing{
		Prompt:           r.FormValue("prompt"),
		PromptType:       domain.PromptType(r.FormValue("prompt_type")),
		TimeLimitSeconds: mustAtoi(r.FormValue("time_limit_seconds")),
		ImagePath:        imagePath,
		CreatedAt:        h.clock.Now().UTC(),
	}
	id, err := h.repo.Create(ctx, drawing)
	if err != nil {
		slog.Error("Failed to create drawing record", "error", err, "image_path", imagePath)
		// The request context may already be done; clean up regardless.
		if delErr := h.blobs.Delete(context.WithoutCancel(ctx), imagePath); delErr != nil {
			slog.Warn("Failed to remove orphaned image", "error", delErr, "image_path", imagePath)
		}
		Error(w, http.StatusInternalServerError, "failed to save drawing")
		return
	}
	drawing.ID = id

	view := drawing.View(h.baseURL(r))
	slog.Info("Drawing created", "drawing_id", id, "prompt_type", drawing.PromptType, "bytes", len(data))
	if h.hub != nil {
		h.hub.PublishCreated(view)
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"id":        id,
		"image_url": view.ImageURL,
	})
}

// Image streams the stored binary of a drawing.
func (h *DrawingHandler) Image(w http.ResponseWriter, r *http.Request) {
	d, ok := h.lookup(w, r)
	if !ok {
		return
	}

	exists, err := h.blobs.Exists(r.Context(), d.ImagePath)
	if err != nil {
		slog.Error("Failed to check drawing image", "error", err, "drawing_id", d.ID)
		Error(w, http.StatusInternalServerError, "failed to read image")
		return
	}
	if !exists {
		slog.Warn("Drawing image missing from storage", "drawing_id", d.ID, "image_path", d.ImagePath)
		Error(w, http.StatusNotFound, "image not found")
		return
	}

	// The binary can still vanish between the check and the open.
	rc, err := h.blobs.Open(r.Context(), d.ImagePath)
	if errdefs.IsNotFound(err) {
		slog.Warn("Drawing image missing from storage", "drawing_id", d.ID, "image_path", d.ImagePath)
		Error(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		slog.Error("Failed to open drawing image", "error", err, "drawing_id", d.ID)
		Error(w, http.StatusInternalServerError, "failed to read image")
		return
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			slog.Debug("Failed to close image reader", "error", closeErr, "drawing_id", d.ID)
		}
	}()

	contentType := extensionTypes[strings.ToLower(path.Ext(d.ImagePath))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Debug("Image stream interrupted", "error", err, "drawing_id", d.ID)
	}
}

// lookup resolves the {id} URL parameter, writing 404 when it does not name a drawing.
func (h *DrawingHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Drawing, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusNotFound, "drawing not found")
		return nil, false
	}

	d, err := h.repo.GetByID(r.Context(), id)
	if errdefs.IsNotFound(err) {
		Error(w, http.StatusNotFound, "drawing not found")
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to get drawing", "error", err, "drawing_id", id)
		Error(w, http.StatusInternalServerError, "failed to get drawing")
		return nil, false
	}
	return d, true
}

// parseUpload reads the multipart form and validates every field, adding
// violations to v. It returns the image bytes and their file extension.
func (h *DrawingHandler) parseUpload(r *http.Request, v *domain.ValidationError) ([]byte, string) {
	var maxErr *http.MaxBytesError
	err := r.ParseMultipartForm(32 << 20)
	switch {
	case errors.As(err, &maxErr):
		v.Add("image", h.tooLargeMessage())
		return nil, ""
	case err != nil && !errors.Is(err, http.ErrNotMultipart):
		v.Add("image", "The image field must be an uploaded file.")
		return nil, ""
	}

	fields := domain.SubmissionFields{
		Prompt:     r.FormValue("prompt"),
		PromptType: domain.PromptType(r.FormValue("prompt_type")),
	}
	rawLimit := strings.TrimSpace(r.FormValue("time_limit_seconds"))
	limit, convErr := strconv.Atoi(rawLimit)
	switch {
	case rawLimit == "":
		v.Add("time_limit_seconds", "The time limit seconds field is required.")
		limit = domain.MinTimeLimitSeconds
	case convErr != nil:
		v.Add("time_limit_seconds", "The time limit seconds field must be an integer.")
		limit = domain.MinTimeLimitSeconds
	}
	// An unparsable limit is reported once above, so it passes the range check.
	fields.TimeLimitSeconds = limit
	fields.Validate(v)

	file, _, err := r.FormFile("image")
	if err != nil {
		v.Add("image", "The image field is required.")
		return nil, ""
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Debug("Failed to close upload part", "error", closeErr)
		}
	}()

	data, tooLarge, err := readLimited(file, h.maxUpload)
	switch {
	case err != nil:
		v.Add("image", "The image failed to upload.")
		return nil, ""
	case tooLarge:
		v.Add("image", h.tooLargeMessage())
		return nil, ""
	}

	ext, err := sniffImage(data)
	if err != nil {
		slog.Debug("Upload is not a decodable image", "error", err)
		v.Add("image", "The image field must be an image.")
		return nil, ""
	}
	return data, ext
}

func (h *DrawingHandler) tooLargeMessage() string {
	return fmt.Sprintf("The image field must not be greater than %d kilobytes.", h.maxUpload/1024)
}

// parseLimit reads the limit query value. A missing value yields the
// default; otherwise the leading integer (0 when there is none) is clamped.
func parseLimit(values []string) int {
	if len(values) == 0 {
		return domain.DefaultListLimit
	}
	raw := strings.TrimSpace(values[0])
	end := 0
	if end < len(raw) && (raw[0] == '-' || raw[0] == '+') {
		end++
	}
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		n = 0
	}
	return domain.ClampListLimit(n)
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
