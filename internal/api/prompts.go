package api

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/prompt"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

// PromptHandler serves prompts from the catalog.
type PromptHandler struct {
	catalog *prompt.Catalog
	clock   clockwork.Clock
	tz      *time.Location

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPromptHandler creates a prompt handler. The daily prompt follows the
// calendar date in tz.
func NewPromptHandler(catalog *prompt.Catalog, clock clockwork.Clock, tz *time.Location) *PromptHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if tz == nil {
		tz = time.UTC
	}
	return &PromptHandler{
		catalog: catalog,
		clock:   clock,
		tz:      tz,
		rng:     rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// RegisterRoutes registers prompt routes.
func (h *PromptHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/prompts", func(r chi.Router) {
		r.Get("/today", h.Today)
		r.Get("/random", h.Random)
	})
}

// Today returns the prompt for the current date.
func (h *PromptHandler) Today(w http.ResponseWriter, _ *http.Request) {
	now := h.clock.Now().In(h.tz)
	JSON(w, http.StatusOK, map[string]string{
		"prompt":      h.catalog.ForDate(now),
		"prompt_type": string(domain.PromptToday),
		"date":        now.Format(time.DateOnly),
	})
}

// Random returns a uniformly chosen prompt.
func (h *PromptHandler) Random(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	p := h.catalog.Random(h.rng)
	h.mu.Unlock()

	JSON(w, http.StatusOK, map[string]string{
		"prompt":      p,
		"prompt_type": string(domain.PromptRandom),
	})
}
