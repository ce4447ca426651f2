package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/draw-labs/internal/blob"
	"github.com/ashureev/draw-labs/internal/domain"
	"github.com/ashureev/draw-labs/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
)

type testEnv struct {
	router  chi.Router
	repo    store.Repository
	blobs   *blob.Disk
	root    string
	clock   *clockwork.FakeClock
	handler *DrawingHandler
}

func newTestEnv(t *testing.T, repo store.Repository) *testEnv {
	t.Helper()

	dir := t.TempDir()
	if repo == nil {
		s, err := store.NewSQLite(filepath.Join(dir, "drawings.db"))
		if err != nil {
			t.Fatalf("NewSQLite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		repo = s
	}
	root := filepath.Join(dir, "storage")
	blobs, err := blob.NewDisk(root, "drawings")
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	h := NewDrawingHandler(NewHandler(repo, blobs, "http://gallery.test"), nil, clock, 0)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	return &testEnv{router: r, repo: repo, blobs: blobs, root: root, clock: clock, handler: h}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "drawing.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/drawings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"prompt":             "猫",
		"prompt_type":        "today",
		"time_limit_seconds": "180",
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) list(t *testing.T, query string) []domain.DrawingView {
	t.Helper()
	rr := e.do(httptest.NewRequest(http.MethodGet, "/api/drawings"+query, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Data []domain.DrawingView `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return resp.Data
}

func countBlobs(t *testing.T, root string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, "drawings"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestCreate_Success(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rr := env.do(uploadRequest(t, validFields(), pngBytes(t, 10, 10)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created struct {
		ID       int64  `json:"id"`
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("expected positive id, got %d", created.ID)
	}
	if want := "http://gallery.test/api/drawings/1/image"; created.ImageURL != want {
		t.Errorf("image_url = %q, want %q", created.ImageURL, want)
	}

	items := env.list(t, "")
	if len(items) != 1 {
		t.Fatalf("expected 1 drawing, got %d", len(items))
	}
	got := items[0]
	if got.Prompt != "猫" || got.PromptType != domain.PromptToday || got.TimeLimitSeconds != 180 {
		t.Errorf("unexpected drawing %+v", got)
	}
	if !got.CreatedAt.Equal(env.clock.Now()) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, env.clock.Now())
	}

	img := env.do(httptest.NewRequest(http.MethodGet, "/api/drawings/1/image", nil))
	if img.Code != http.StatusOK {
		t.Fatalf("image: expected 200, got %d", img.Code)
	}
	if ct := img.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := png.Decode(img.Body); err != nil {
		t.Errorf("served image does not decode: %v", err)
	}
}

func TestCreate_ValidationRejectsAndStoresNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(map[string]string)
		image  []byte
		field  string
	}{
		{"time limit too short", func(f map[string]string) { f["time_limit_seconds"] = "5" }, nil, "time_limit_seconds"},
		{"time limit too long", func(f map[string]string) { f["time_limit_seconds"] = "3601" }, nil, "time_limit_seconds"},
		{"time limit not integer", func(f map[string]string) { f["time_limit_seconds"] = "abc" }, nil, "time_limit_seconds"},
		{"missing prompt", func(f map[string]string) { delete(f, "prompt") }, nil, "prompt"},
		{"prompt too long", func(f map[string]string) { f["prompt"] = strings.Repeat("あ", 256) }, nil, "prompt"},
		{"bad prompt type", func(f map[string]string) { f["prompt_type"] = "weekly" }, nil, "prompt_type"},
		{"not an image", func(map[string]string) {}, []byte("definitely not a png"), "image"},
		{"missing image", func(map[string]string) {}, []byte{}, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, nil)

			fields := validFields()
			tt.mutate(fields)
			img := tt.image
			if img == nil {
				img = pngBytes(t, 4, 4)
			} else if len(img) == 0 {
				img = nil
			}

			rr := env.do(uploadRequest(t, fields, img))
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
			}
			var body struct {
				Message string              `json:"message"`
				Errors  map[string][]string `json:"errors"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Errors[tt.field]) == 0 {
				t.Errorf("expected error for %s, got %v", tt.field, body.Errors)
			}
			if body.Message == "" {
				t.Error("expected summary message")
			}

			if items := env.list(t, ""); len(items) != 0 {
				t.Errorf("expected no drawings, got %d", len(items))
			}
			if n := countBlobs(t, env.root); n != 0 {
				t.Errorf("expected no stored images, got %d", n)
			}
		})
	}
}

func TestCreate_ImageTooLarge(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.handler.maxUpload = 16

	rr := env.do(uploadRequest(t, validFields(), pngBytes(t, 64, 64)))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "kilobytes") {
		t.Errorf("expected size message, got %s", rr.Body.String())
	}
}

type failingRepo struct {
	store.Repository
	mu    sync.Mutex
	calls int
}

func (f *failingRepo) Create(context.Context, *domain.Drawing) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 0, errors.New("disk full")
}

func TestCreate_RecordFailureRemovesImage(t *testing.T) {
	t.Parallel()
	repo := &failingRepo{}
	env := newTestEnv(t, repo)

	rr := env.do(uploadRequest(t, validFields(), pngBytes(t, 4, 4)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if repo.calls != 1 {
		t.Errorf("expected one Create call, got %d", repo.calls)
	}
	if n := countBlobs(t, env.root); n != 0 {
		t.Errorf("expected orphaned image to be removed, found %d", n)
	}
}

func TestList_LimitAndOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for i := 0; i < 3; i++ {
		rr := env.do(uploadRequest(t, validFields(), pngBytes(t, 2, 2)))
		if rr.Code != http.StatusCreated {
			t.Fatalf("create %d: %d", i, rr.Code)
		}
		env.clock.Advance(time.Minute)
	}

	items := env.list(t, "?limit=2")
	if len(items) != 2 {
		t.Fatalf("expected 2 drawings, got %d", len(items))
	}
	if items[0].ID != 3 || items[1].ID != 2 {
		t.Errorf("expected newest first, got ids %d,%d", items[0].ID, items[1].ID)
	}

	if items := env.list(t, "?limit=0"); len(items) != 1 {
		t.Errorf("limit=0 should clamp to 1, got %d", len(items))
	}
	if items := env.list(t, "?limit=999"); len(items) != 3 {
		t.Errorf("limit=999 should clamp to 50 and return all 3, got %d", len(items))
	}
}

func TestParseLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		values []string
		want   int
	}{
		{nil, 20},
		{[]string{"12"}, 12},
		{[]string{"0"}, 1},
		{[]string{"-4"}, 1},
		{[]string{"500"}, 50},
		{[]string{"abc"}, 1},
		{[]string{"7abc"}, 7},
		{[]string{""}, 1},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.values); got != tt.want {
			t.Errorf("parseLimit(%v) = %d, want %d", tt.values, got, tt.want)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, p := range []string{"/api/drawings/42", "/api/drawings/abc", "/api/drawings/42/image"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, p, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", p, rr.Code)
		}
	}
}

func TestImage_MissingBinary(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rr := env.do(uploadRequest(t, validFields(), pngBytes(t, 3, 3)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}

	d, err := env.repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := env.blobs.Delete(context.Background(), d.ImagePath); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	img := env.do(httptest.NewRequest(http.MethodGet, "/api/drawings/1/image", nil))
	if img.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing binary, got %d", img.Code)
	}

	// The record itself is still listed.
	got := env.do(httptest.NewRequest(http.MethodGet, "/api/drawings/1", nil))
	if got.Code != http.StatusOK {
		t.Fatalf("expected record to remain, got %d", got.Code)
	}
	body, _ := io.ReadAll(got.Body)
	if !strings.Contains(string(body), `"image_url":"http://gallery.test/api/drawings/1/image"`) {
		t.Errorf("unexpected body %s", body)
	}
}

// spyBlobs records which blob operations the image handler performs.
type spyBlobs struct {
	*blob.Disk
	existsErr error

	mu     sync.Mutex
	exists int
	opens  int
}

func (s *spyBlobs) Exists(ctx context.Context, p string) (bool, error) {
	s.mu.Lock()
	s.exists++
	s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.Disk.Exists(ctx, p)
}

func (s *spyBlobs) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return s.Disk.Open(ctx, p)
}

func TestImage_ChecksExistenceBeforeOpening(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rr := env.do(uploadRequest(t, validFields(), pngBytes(t, 3, 3)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d", rr.Code)
	}
	d, err := env.repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	serve := func(spy *spyBlobs) *httptest.ResponseRecorder {
		h := NewDrawingHandler(NewHandler(env.repo, spy, "http://gallery.test"), nil, env.clock, 0)
		r := chi.NewRouter()
		h.RegisterRoutes(r)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/drawings/1/image", nil))
		return w
	}

	present := &spyBlobs{Disk: env.blobs}
	if w := serve(present); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if present.exists != 1 || present.opens != 1 {
		t.Errorf("present image: exists=%d opens=%d, want 1 and 1", present.exists, present.opens)
	}

	broken := &spyBlobs{Disk: env.blobs, existsErr: errors.New("disk offline")}
	if w := serve(broken); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the check fails, got %d", w.Code)
	}
	if broken.opens != 0 {
		t.Errorf("image opened after failed check")
	}

	if err := env.blobs.Delete(context.Background(), d.ImagePath); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	missing := &spyBlobs{Disk: env.blobs}
	if w := serve(missing); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if missing.exists != 1 || missing.opens != 0 {
		t.Errorf("missing image: exists=%d opens=%d, want 1 and 0", missing.exists, missing.opens)
	}
}
