// Package client implements the submitting side of a drawing session: the
// upload pipeline, gallery sync and the HTTP transport both use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/draw-labs/internal/domain"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 64 << 10

// Upload is one drawing ready to send.
type Upload struct {
	Fields   domain.SubmissionFields
	Filename string
	Image    []byte
}

// Created is the server's answer to an accepted upload.
type Created struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"image_url"`
}

// Transport moves drawings between client and server.
type Transport interface {
	Upload(ctx context.Context, u Upload) (*Created, error)
	List(ctx context.Context, limit int) ([]domain.DrawingView, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// HTTPTransport talks to the drawing API over HTTP.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the API rooted at baseURL
// (for example http://localhost:8080). A nil client uses a default with a
// 30 second timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// BaseURL returns the API root.
func (t *HTTPTransport) BaseURL() string { return t.baseURL }

// Upload posts a multipart drawing. A 422 answer becomes a
// *domain.ValidationError; any other failure a *domain.TransportError.
func (t *HTTPTransport) Upload(ctx context.Context, u Upload) (*Created, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"prompt", u.Fields.Prompt},
		{"prompt_type", string(u.Fields.PromptType)},
		{"time_limit_seconds", strconv.Itoa(u.Fields.TimeLimitSeconds)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	part, err := mw.CreateFormFile("image", u.Filename)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(u.Image); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/drawings", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusUnprocessableEntity:
		return nil, decodeValidation(resp.Body)
	default:
		return nil, statusError(resp)
	}

	var created Created
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &domain.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode upload response: %w", err)}
	}
	return &created, nil
}

// List fetches the newest drawings.
func (t *HTTPTransport) List(ctx context.Context, limit int) ([]domain.DrawingView, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api/drawings?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out struct {
		Data []domain.DrawingView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode list response: %w", err)}
	}
	return out.Data, nil
}

// FetchImage downloads an image. It returns domain.ErrNotFound on 404.
func (t *HTTPTransport) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("fetch %s: %w", imageURL, domain.ErrNotFound)
	default:
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxImageBytes+1))
	if err != nil {
		return nil, &domain.TransportError{Status: resp.StatusCode, Err: err}
	}
	return data, nil
}

func decodeValidation(r io.Reader) error {
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	v := domain.NewValidationError()
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&body); err != nil || len(body.Errors) == 0 {
		msg := body.Message
		if msg == "" {
			msg = "The submission was rejected."
		}
		v.Add("message", msg)
		return v
	}
	for field, msgs := range body.Errors {
		for _, m := range msgs {
			v.Add(field, m)
		}
	}
	return v
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &domain.TransportError{
		Status: resp.StatusCode,
		Err:    fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(snippet))),
	}
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBody))
	_ = rc.Close()
}
