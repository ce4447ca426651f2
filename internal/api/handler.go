// Package api provides HTTP handlers for the drawing gallery API.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ashureev/draw-labs/internal/blob"
	"github.com/ashureev/draw-labs/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo      store.Repository
	blobs     blob.Store
	publicURL string
}

// NewHandler creates a new Handler with common dependencies. publicURL is
// the base image URLs are built on; empty derives it from each request.
func NewHandler(repo store.Repository, blobs blob.Store, publicURL string) *Handler {
	return &Handler{
		repo:      repo,
		blobs:     blobs,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// baseURL returns the scheme and host image URLs are resolved against.
func (h *Handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
