package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keagan/cutline/internal/monitor"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "clip.mp4" || string(data) != "video-bytes" {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		if r.FormValue("language") == "xx" {
			json.NewEncoder(w).Encode(GenerateResult{Success: false})
			return
		}
		json.NewEncoder(w).Encode(GenerateResult{
			Success:   true,
			ProcessID: "proc-1",
			Segments: []timeline.Segment{
				{ID: 1, Start: 0, End: 1.5, Text: "hello " + r.FormValue("language")},
				{ID: 2, Start: 1.5, End: 3, Text: "world"},
			},
		})
	})
	mux.HandleFunc("/api/translate", func(w http.ResponseWriter, r *http.Request) {
		var req TranslateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]timeline.Segment, len(req.Segments))
		for i, s := range req.Segments {
			s.Text = req.TargetLanguage + ":" + s.Text
			out[i] = s
		}
		json.NewEncoder(w).Encode(TranslateResult{Success: true, Segments: out})
	})
	mux.HandleFunc("/export/process-video", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte("rendered:" + r.FormValue("elements")))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(zerolog.Nop(), srv.URL+"/", srv.URL+"/export", time.Second, nil)

	res, err := c.Generate(context.Background(), []byte("video-bytes"), "clip.mp4", "fr")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.ProcessID != "proc-1" || len(res.Segments) != 2 || res.Segments[0].Text != "hello fr" {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := c.Generate(context.Background(), []byte("video-bytes"), "clip.mp4", "xx"); !errors.Is(err, ErrUnsuccessful) {
		t.Errorf("expected ErrUnsuccessful, got %v", err)
	}
	if _, err := c.Generate(context.Background(), []byte("other"), "clip.mp4", "en"); err == nil {
		t.Error("expected HTTP error to surface")
	}
}

func TestTranslate(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(zerolog.Nop(), srv.URL, "", time.Second, nil)

	res, err := c.Translate(context.Background(), []timeline.Segment{{ID: 1, Start: 0, End: 1, Text: "hi"}}, "de")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if res.Segments[0].Text != "de:hi" {
		t.Errorf("unexpected translation %+v", res.Segments)
	}

	if _, err := c.Translate(context.Background(), nil, "de"); err == nil {
		t.Error("expected error without segments")
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(zerolog.Nop(), srv.URL, srv.URL+"/export", time.Second, nil)

	data, err := c.Export(context.Background(), []byte("video"), []map[string]string{{"id": "a"}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if string(data) != `rendered:[{"id":"a"}]` {
		t.Errorf("unexpected export %q", data)
	}
}

type slowReporter struct {
	mu    sync.Mutex
	names []string
}

func (r *slowReporter) Report(_ context.Context, ev monitor.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, ev.Name)
}

func TestSlowCallObservedNotCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		json.NewEncoder(w).Encode(TranslateResult{Success: true, Segments: []timeline.Segment{{ID: 1, Text: "ok"}}})
	}))
	defer srv.Close()

	rep := &slowReporter{}
	c := NewClient(zerolog.Nop(), srv.URL, "", 5*time.Second, monitor.NewWatcher(10*time.Millisecond, rep))

	if _, err := c.Translate(context.Background(), []timeline.Segment{{ID: 1, Text: "x"}}, "en"); err != nil {
		t.Fatalf("slow call must still succeed: %v", err)
	}
	rep.mu.Lock()
	defer rep.mu.Unlock()
	if len(rep.names) != 1 || rep.names[0] != "translateTranscript" {
		t.Errorf("expected one slow call report, got %v", rep.names)
	}
}

func TestPlaceLaysOutCaptions(t *testing.T) {
	doc := timeline.NewDocument(540, 960)
	segments := []timeline.Segment{
		{ID: 1, Start: 0, End: 2, Text: "short"},
		{ID: 2, Start: 2, End: 4, Text: strings.Repeat("a", 31)},
	}

	ids, err := Place(doc, segments, "en", 50)
	if err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "transcript-en-1" {
		t.Fatalf("unexpected ids %v", ids)
	}

	// 540 / 18 = 30 characters per line
	first, _ := doc.Element(ids[0])
	second, _ := doc.Element(ids[1])
	if first.Height != 36 || first.Y != 960-36-10 {
		t.Errorf("one line caption at wrong place: y=%v h=%v", first.Y, first.Height)
	}
	if second.Height != 72 || second.Y != 960-72-10 {
		t.Errorf("two line caption at wrong place: y=%v h=%v", second.Y, second.Height)
	}
	if first.Width != 540 || first.X != 0 || first.FontSize != 30 {
		t.Errorf("unexpected geometry %+v", first)
	}
	if *second.Custom.StartAt != 100 || *second.Custom.EndAt != 200 || second.Duration != 2000 {
		t.Errorf("unexpected window %v..%v (%vms)", *second.Custom.StartAt, *second.Custom.EndAt, second.Duration)
	}
}

func TestPlaceReplacesOnlySameLanguage(t *testing.T) {
	doc := timeline.NewDocument(1080, 1080)
	segs := []timeline.Segment{{ID: 1, Start: 0, End: 1, Text: "x"}, {ID: 2, Start: 1, End: 2, Text: "y"}}

	if _, err := Place(doc, segs, "en", 50); err != nil {
		t.Fatal(err)
	}
	if _, err := Place(doc, segs[:1], "de", 50); err != nil {
		t.Fatal(err)
	}
	if _, err := Place(doc, segs[:1], "en", 50); err != nil {
		t.Fatal(err)
	}

	if got := len(doc.Elements()); got != 2 {
		t.Errorf("expected 2 elements, got %d", got)
	}
	if langs := doc.Languages(); len(langs) != 2 || langs[0] != "de" || langs[1] != "en" {
		t.Errorf("unexpected languages %v", langs)
	}

	if n := Clear(doc, "de"); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if n := Clear(doc, "fr"); n != 0 {
		t.Errorf("expected nothing cleared, got %d", n)
	}
}

func TestApplyGeneratedRecordsRun(t *testing.T) {
	doc := timeline.NewDocument(1080, 1080)
	res := &GenerateResult{Success: true, ProcessID: "p", Segments: []timeline.Segment{{ID: 3, Start: 0, End: 1, Text: "x"}}}

	if _, err := ApplyGenerated(doc, res, "en", 50); err != nil {
		t.Fatal(err)
	}
	meta := doc.Transcript()
	if meta.ProcessID != "p" || len(meta.Segments) != 1 {
		t.Errorf("transcript run not recorded: %+v", meta)
	}
}
