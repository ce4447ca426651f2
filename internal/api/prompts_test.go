package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/draw-labs/internal/prompt"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

func TestPromptToday_UsesConfiguredZone(t *testing.T) {
	t.Parallel()

	catalog, err := prompt.New("a", "b", "c")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tokyo := time.FixedZone("JST", 9*3600)
	// 20:00 UTC on the 1st is already the 2nd in Tokyo.
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC))

	r := chi.NewRouter()
	NewPromptHandler(catalog, clock, tokyo).RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prompts/today", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["date"] != "2025-06-02" {
		t.Errorf("date = %q, want 2025-06-02", body["date"])
	}
	want := catalog.ForDate(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	if body["prompt"] != want {
		t.Errorf("prompt = %q, want %q", body["prompt"], want)
	}
	if body["prompt_type"] != "today" {
		t.Errorf("prompt_type = %q", body["prompt_type"])
	}
}

func TestPromptRandom_FromCatalog(t *testing.T) {
	t.Parallel()

	catalog, err := prompt.New("only")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	NewPromptHandler(catalog, nil, nil).RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prompts/random", nil))

	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["prompt"] != "only" || body["prompt_type"] != "random" {
		t.Errorf("unexpected body %v", body)
	}
}
