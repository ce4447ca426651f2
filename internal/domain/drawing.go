// Package domain contains core domain types for the drawing practice application.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// PromptType records where a drawing's prompt came from.
type PromptType string

const (
	PromptToday  PromptType = "today"
	PromptRandom PromptType = "random"
)

// Valid reports whether t is a known prompt type.
func (t PromptType) Valid() bool {
	return t == PromptToday || t == PromptRandom
}

// Submission limits shared by the client pipeline and the server.
const (
	MaxPromptLength     = 255
	MinTimeLimitSeconds = 10
	MaxTimeLimitSeconds = 3600
	MaxImageBytes       = 10 * 1024 * 1024
)

// Listing limits.
const (
	MinListLimit     = 1
	MaxListLimit     = 50
	DefaultListLimit = 20
)

// Drawing is a persisted submission. It is immutable once created.
type Drawing struct {
	ID               int64      `json:"id"`
	Prompt           string     `json:"prompt"`
	PromptType       PromptType `json:"prompt_type"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	ImagePath        string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
}

// DrawingView is the wire representation of a drawing.
type DrawingView struct {
	ID               int64      `json:"id"`
	Prompt           string     `json:"prompt"`
	PromptType       PromptType `json:"prompt_type"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	ImageURL         string     `json:"image_url"`
	CreatedAt        time.Time  `json:"created_at"`
}

// View resolves the drawing's image path to a public URL under baseURL.
func (d *Drawing) View(baseURL string) DrawingView {
	return DrawingView{
		ID:               d.ID,
		Prompt:           d.Prompt,
		PromptType:       d.PromptType,
		TimeLimitSeconds: d.TimeLimitSeconds,
		ImageURL:         ImageURL(baseURL, d.ID),
		CreatedAt:        d.CreatedAt,
	}
}

// ImageURL returns the URL the image of drawing id is served from.
func ImageURL(baseURL string, id int64) string {
	return fmt.Sprintf("%s/api/drawings/%d/image", strings.TrimRight(baseURL, "/"), id)
}

// ClampListLimit bounds a requested list size to [MinListLimit, MaxListLimit].
func ClampListLimit(limit int) int {
	if limit < MinListLimit {
		return MinListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// SubmissionFields holds the metadata accompanying an uploaded image.
type SubmissionFields struct {
	Prompt           string
	PromptType       PromptType
	TimeLimitSeconds int
}

// Validate checks the metadata rules and adds every violation to v.
func (f SubmissionFields) Validate(v *ValidationError) {
	prompt := strings.TrimSpace(f.Prompt)
	switch {
	case prompt == "":
		v.Add("prompt", "The prompt field is required.")
	case utf8.RuneCountInString(f.Prompt) > MaxPromptLength:
		v.Add("prompt", fmt.Sprintf("The prompt field must not be greater than %d characters.", MaxPromptLength))
	}

	switch {
	case f.PromptType == "":
		v.Add("prompt_type", "The prompt type field is required.")
	case !f.PromptType.Valid():
		v.Add("prompt_type", "The selected prompt type is invalid.")
	}

	if f.TimeLimitSeconds < MinTimeLimitSeconds || f.TimeLimitSeconds > MaxTimeLimitSeconds {
		v.Add("time_limit_seconds", fmt.Sprintf("The time limit seconds field must be between %d and %d.",
			MinTimeLimitSeconds, MaxTimeLimitSeconds))
	}
}
