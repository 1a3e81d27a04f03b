package gui

import (
	"math"
	"testing"
	"time"

	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/ffmpeg"
	"github.com/keagan/cutline/internal/interaction"
)

func loadedModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel(config.Default())
	info := &ffmpeg.VideoInfo{Width: 1920, Height: 1080, Duration: 10 * time.Second}
	if err := m.LoadVideo("/videos/clip.mp4", info); err != nil {
		t.Fatalf("LoadVideo failed: %v", err)
	}
	return m
}

func TestLoadVideo(t *testing.T) {
	m := loadedModel(t)

	view := m.View()
	if len(view.Elements) != 1 || view.Elements[0].Name != "clip.mp4" {
		t.Fatalf("elements = %+v", view.Elements)
	}
	// 10s at 50 px/s
	if view.MaxEnd != 500 {
		t.Errorf("MaxEnd = %v, want 500", view.MaxEnd)
	}
	if view.Clock != "0:00 / 0:10" {
		t.Errorf("Clock = %q", view.Clock)
	}

	// reloading replaces the video rather than adding a second one
	if err := m.LoadVideo("/videos/other.mp4", &ffmpeg.VideoInfo{Width: 640, Height: 360, Duration: 4 * time.Second}); err != nil {
		t.Fatal(err)
	}
	view = m.View()
	if len(view.Elements) != 1 || view.MaxEnd != 200 {
		t.Errorf("after reload: %+v", view)
	}
}

func TestScrub(t *testing.T) {
	m := loadedModel(t)

	tests := []struct {
		px   float64
		want float64
	}{
		{100, 100},
		{-20, 0},
		{900, 500},
	}
	for _, tt := range tests {
		m.Scrub(tt.px)
		if got := m.State().CurrentTime(); got != tt.want {
			t.Errorf("Scrub(%v): current = %v, want %v", tt.px, got, tt.want)
		}
	}
}

func TestAddText(t *testing.T) {
	m := loadedModel(t)
	m.Scrub(100) // 2s

	id := m.AddText("hello", 32)
	view := m.View()
	if len(view.Overlays) != 1 || view.Overlays[0].ID != id {
		t.Fatalf("overlays = %+v", view.Overlays)
	}
	o := view.Overlays[0]
	if o.StartTime != 2 || o.EndTime != 4 || o.Text.FontSize != 32 {
		t.Errorf("overlay = %+v", o)
	}

	// near the end the window is pulled back inside the video
	m.Scrub(490)
	id = m.AddText("late", 32)
	for _, o := range m.View().Overlays {
		if o.ID == id && (o.EndTime != 10 || o.StartTime != 8) {
			t.Errorf("late overlay = %v..%v", o.StartTime, o.EndTime)
		}
	}
}

func TestShiftOverlay(t *testing.T) {
	m := loadedModel(t)
	id := m.AddText("hello", 32)

	tests := []struct {
		name       string
		delta      float64
		start, end float64
	}{
		{"later", 1.5, 1.5, 3.5},
		{"clamps at zero", -5, 0, 2},
		{"clamps at end", 100, 8, 10},
	}
	for _, tt := range tests {
		m.ShiftOverlay(id, tt.delta)
		o := m.View().Overlays[0]
		if !near(o.StartTime, tt.start) || !near(o.EndTime, tt.end) {
			t.Errorf("%s: %v..%v, want %v..%v", tt.name, o.StartTime, o.EndTime, tt.start, tt.end)
		}
	}
}

func TestTrimElement(t *testing.T) {
	m := loadedModel(t)

	tests := []struct {
		name       string
		edge       interaction.Edge
		delta      float64
		start, end float64
	}{
		{"start later", interaction.EdgeStart, 2, 2, 10},
		{"end earlier", interaction.EdgeEnd, -3, 2, 7},
		{"end capped at media length", interaction.EdgeEnd, 20, 2, 10},
		{"start kept one second before end", interaction.EdgeStart, 50, 9, 10},
		{"start floored at zero", interaction.EdgeStart, -50, 0, 10},
	}
	for _, tt := range tests {
		m.TrimElement("video", tt.edge, tt.delta)
		el, _ := m.Document().Element("video")
		if !near(el.StartTime, tt.start) || !near(el.EndTime, tt.end) {
			t.Errorf("%s: %v..%v, want %v..%v", tt.name, el.StartTime, el.EndTime, tt.start, tt.end)
		}
	}
}

func TestMarkInOut(t *testing.T) {
	m := loadedModel(t)

	m.Scrub(150)
	m.MarkIn()
	m.Scrub(400)
	m.MarkOut()

	el, _ := m.Document().Element("video")
	if !near(el.StartTime, 3) || !near(el.EndTime, 8) {
		t.Errorf("trim = %v..%v, want 3..8", el.StartTime, el.EndTime)
	}
}

func TestMoveElement(t *testing.T) {
	m := loadedModel(t)

	m.MoveElement("video", 100)
	view := m.View()
	if view.Elements[0].StartAt != 100 || view.Elements[0].EndAt != 600 {
		t.Errorf("window = %v..%v, want 100..600", view.Elements[0].StartAt, view.Elements[0].EndAt)
	}
	if view.MaxEnd != 600 {
		t.Errorf("MaxEnd = %v, want 600", view.MaxEnd)
	}

	m.MoveElement("missing", 50)
	if got := m.View().Elements[0].StartAt; got != 100 {
		t.Errorf("unknown id moved the video to %v", got)
	}
}

func TestRemoveOverlay(t *testing.T) {
	m := loadedModel(t)
	id := m.AddText("hello", 32)
	m.RemoveOverlay(id)
	if len(m.View().Overlays) != 0 {
		t.Error("overlay not removed")
	}
}

func TestProject(t *testing.T) {
	m := loadedModel(t)
	m.AddText("hello", 32)

	p := m.Project()
	if p.Video != "/videos/clip.mp4" || p.Canvas.Width != 1920 || p.Canvas.Height != 1080 {
		t.Errorf("project = %+v", p)
	}
	if len(p.Overlays) != 1 || p.Document == nil {
		t.Errorf("project overlays = %d document = %v", len(p.Overlays), p.Document)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("exported project invalid: %v", err)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
