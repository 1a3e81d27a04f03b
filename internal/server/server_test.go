package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/keagan/cutline/internal/compositor"
	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/storage"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/rs/zerolog"
)

type fakeRequester struct{}

func (fakeRequester) Request(_ context.Context, p *pipeline.Project) (compositor.Request, error) {
	return compositor.Request{
		Video:        compositor.Source{Ref: p.Video, Data: []byte("video")},
		VideoWidth:   1920,
		VideoHeight:  1080,
		CanvasWidth:  p.Canvas.Width,
		CanvasHeight: p.Canvas.Height,
		Overlays:     p.Overlays,
	}, nil
}

type fakeEngine struct {
	files    map[string][]byte
	progress func(float64)
}

func (e *fakeEngine) Load(context.Context) error {
	e.files = make(map[string][]byte)
	return nil
}
func (e *fakeEngine) WriteFile(name string, data []byte) error { e.files[name] = data; return nil }
func (e *fakeEngine) Exec(context.Context, []string) error {
	e.progress(1)
	e.files[compositor.OutputName] = []byte("rendered")
	return nil
}
func (e *fakeEngine) ReadFile(name string) ([]byte, error) { return e.files[name], nil }
func (e *fakeEngine) OnProgress(fn func(float64))          { e.progress = fn }
func (e *fakeEngine) Close() error                         { return nil }

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("unexpected fetch")
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zerolog.Nop()
	comp := compositor.New(logger, func() compositor.Engine { return &fakeEngine{} }, nopFetcher{})
	designs := storage.NewDesigns(logger, storage.NewMemoryStore(), nil)
	s := New(logger, config.Default(), fakeRequester{}, comp, designs)
	return s, s.Router()
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const textProject = `{"video":"clip.mp4","canvas":{"width":1920,"height":1080},
"overlays":[{"id":"title","type":"text","startTime":0,"endTime":2,"position":{"x":0.5,"y":0.5},
"text":{"text":"Hello","fontSize":64,"color":"white"}}]}`

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)
	w := do(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCompose(t *testing.T) {
	_, router := newTestServer(t)
	w := do(router, http.MethodPost, "/api/compose", textProject)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "rendered" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "video/mp4" || w.Header().Get("X-Job-Id") == "" {
		t.Errorf("headers = %v", w.Header())
	}
}

func TestComposeInvalidProject(t *testing.T) {
	_, router := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"no video", `{"overlays":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/compose", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d", w.Code)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	_, router := newTestServer(t)
	w := do(router, http.MethodPost, "/api/plan", textProject)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var body struct {
		FilterGraph string   `json:"filterGraph"`
		Args        []string `json:"args"`
		AudioMap    string   `json:"audioMap"`
		Stages      int      `json:"stages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Stages != 1 || body.AudioMap != "0:a?" {
		t.Errorf("unexpected plan %+v", body)
	}
	if !strings.Contains(body.FilterGraph, "fontsize=64") || !strings.HasSuffix(body.FilterGraph, "[v0]") {
		t.Errorf("filter graph = %s", body.FilterGraph)
	}
}

func TestProgressStream(t *testing.T) {
	_, router := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/compose/progress", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "event:status") || !strings.Contains(w.Body.String(), `"loading":false`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestProjectTimeline(t *testing.T) {
	_, router := newTestServer(t)

	doc := timeline.NewDocument(1080, 1080)
	if err := doc.AddElement("", timeline.Element{ID: "v", Kind: timeline.KindVideo, Name: "clip", Duration: 4000, Visible: true}); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	w := do(router, http.MethodPost, "/api/timeline/project", `{"document":`+string(raw)+`,"currentTime":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var body struct {
		Elements []timeline.Projection `json:"elements"`
		MaxEndAt float64               `json:"maxEndAt"`
		Current  string                `json:"current"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Elements) != 1 || body.Elements[0].ID != "v" {
		t.Fatalf("elements = %+v", body.Elements)
	}
	if body.MaxEndAt <= 0 || body.Current != "0:00" {
		t.Errorf("maxEndAt = %v current = %q", body.MaxEndAt, body.Current)
	}
}

func TestProjectTimelineRequiresDocument(t *testing.T) {
	_, router := newTestServer(t)
	w := do(router, http.MethodPost, "/api/timeline/project", `{"currentTime":10}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestDesigns(t *testing.T) {
	_, router := newTestServer(t)

	save, _ := json.Marshal(map[string]any{
		"name":     "first",
		"document": map[string]any{"width": 1080},
		"preview":  []byte("jpeg"),
	})
	w := do(router, http.MethodPut, "/api/designs/d1", string(save))
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d body = %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodGet, "/api/designs", "")
	if !strings.Contains(w.Body.String(), `"lastId":"d1"`) || !strings.Contains(w.Body.String(), `"name":"first"`) {
		t.Errorf("list = %s", w.Body.String())
	}

	w = do(router, http.MethodGet, "/api/designs/d1", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"document":{"width":1080}`) {
		t.Errorf("get = %d %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodGet, "/api/designs/d1/preview", "")
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), []byte("jpeg")) {
		t.Errorf("preview = %d %q", w.Code, w.Body.String())
	}

	w = do(router, http.MethodDelete, "/api/designs/d1", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}

	w = do(router, http.MethodGet, "/api/designs/d1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestSaveDesignRequiresDocument(t *testing.T) {
	_, router := newTestServer(t)
	w := do(router, http.MethodPut, "/api/designs/d1", `{"name":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{compositor.ErrBusy, http.StatusConflict},
		{pipeline.ErrInvalidProject, http.StatusBadRequest},
		{compositor.ErrNoVideo, http.StatusBadRequest},
		{compositor.ErrAspectMismatch, http.StatusUnprocessableEntity},
		{storage.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestOfferLatestKeepsFinalStatus(t *testing.T) {
	tests := []struct {
		name    string
		queued  int
		wantLen int
	}{
		{"empty buffer", 0, 1},
		{"partly full", 3, 4},
		{"full buffer", 4, 4},
	}

	for _, tt := range tests {
		ch := make(chan compositor.Status, 4)
		for i := 0; i < tt.queued; i++ {
			offerLatest(ch, compositor.Status{Loading: true, Progress: i * 10})
		}
		offerLatest(ch, compositor.Status{Loading: false, Progress: 100})

		if len(ch) != tt.wantLen {
			t.Errorf("%s: %d queued, want %d", tt.name, len(ch), tt.wantLen)
		}
		var last compositor.Status
		for len(ch) > 0 {
			last = <-ch
		}
		if last.Loading || last.Progress != 100 {
			t.Errorf("%s: last status %+v, want the final one", tt.name, last)
		}
	}
}
