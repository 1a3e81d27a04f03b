package interaction

import (
	"math"
	"testing"

	"github.com/keagan/cutline/internal/overlays"
	"github.com/keagan/cutline/internal/session"
	"github.com/keagan/cutline/internal/timeline"
)

func setup(t *testing.T, layout Layout, els ...timeline.Element) (*Controller, *timeline.Document, *overlays.Store, *session.State) {
	t.Helper()
	doc := timeline.NewDocument(1080, 1080)
	for _, el := range els {
		if err := doc.AddElement("", el); err != nil {
			t.Fatalf("AddElement: %v", err)
		}
	}
	store := overlays.NewStore()
	state := session.New("en")
	return New(doc, store, state, layout), doc, store, state
}

func TestDragMovesElementPreservingWidth(t *testing.T) {
	c, doc, _, _ := setup(t, Layout{PixelsPerSecond: 50},
		timeline.Element{ID: "ov", Kind: timeline.KindText, Duration: 1000})

	target := timeline.Projection{ID: "ov", StartAt: 0, EndAt: 50}
	if !c.BeginDrag(target, 0) {
		t.Fatal("BeginDrag refused")
	}
	c.Move(100)
	c.End()

	el, _ := doc.Element("ov")
	if *el.Custom.StartAt != 100 || *el.Custom.EndAt != 150 {
		t.Errorf("expected [100, 150], got [%v, %v]", *el.Custom.StartAt, *el.Custom.EndAt)
	}
	if c.State().Kind != Idle {
		t.Errorf("expected Idle after End, got %v", c.State().Kind)
	}
}

func TestDragKeepsGrabOffsetAndClampsAtZero(t *testing.T) {
	c, doc, _, _ := setup(t, Layout{ContainerLeft: 20, PixelsPerSecond: 50},
		timeline.Element{ID: "ov", Kind: timeline.KindText})

	// grab 10px into an element starting at 40
	c.BeginDrag(timeline.Projection{ID: "ov", StartAt: 40, EndAt: 90}, 70)

	c.Move(100)
	el, _ := doc.Element("ov")
	if *el.Custom.StartAt != 70 || *el.Custom.EndAt != 120 {
		t.Errorf("expected [70, 120], got [%v, %v]", *el.Custom.StartAt, *el.Custom.EndAt)
	}

	c.Move(-500)
	el, _ = doc.Element("ov")
	if *el.Custom.StartAt != 0 || *el.Custom.EndAt != 50 {
		t.Errorf("expected clamp to [0, 50], got [%v, %v]", *el.Custom.StartAt, *el.Custom.EndAt)
	}
}

func TestTrimLeftEdge(t *testing.T) {
	c, doc, _, _ := setup(t, Layout{PixelsPerSecond: 50},
		timeline.Element{ID: "v", Kind: timeline.KindVideo, StartTime: 2, EndTime: 6})

	c.BeginTrim("v", EdgeStart, 100)

	c.Move(150) // +1s
	if el, _ := doc.Element("v"); el.StartTime != 3 {
		t.Errorf("expected start 3, got %v", el.StartTime)
	}
	c.Move(-1000) // far left
	if el, _ := doc.Element("v"); el.StartTime != 0 {
		t.Errorf("expected start clamped to 0, got %v", el.StartTime)
	}
	c.Move(1000) // far right
	if el, _ := doc.Element("v"); el.StartTime != 5 {
		t.Errorf("expected start clamped to end-1 = 5, got %v", el.StartTime)
	}
}

func TestTrimRightEdgeCeiling(t *testing.T) {
	c, doc, _, _ := setup(t, Layout{PixelsPerSecond: 50, TrimCeiling: 10},
		timeline.Element{ID: "v", Kind: timeline.KindVideo, StartTime: 2, EndTime: 6})

	c.BeginTrim("v", EdgeEnd, 0)

	c.Move(50)
	if el, _ := doc.Element("v"); el.EndTime != 7 {
		t.Errorf("expected end 7, got %v", el.EndTime)
	}
	c.Move(5000)
	if el, _ := doc.Element("v"); el.EndTime != 10 {
		t.Errorf("expected end capped at 10, got %v", el.EndTime)
	}
	c.Move(-5000)
	if el, _ := doc.Element("v"); el.EndTime != 3 {
		t.Errorf("expected end floored at start+1 = 3, got %v", el.EndTime)
	}
}

func TestTrimMinimumDurationInvariant(t *testing.T) {
	starts := []float64{0, 0.25, 2, 7.5}
	ends := []float64{0.5, 1, 3, 9}
	moves := []float64{-10000, -333, -50, -1, 0, 1, 37, 50, 420, 10000}

	for _, start := range starts {
		for _, end := range ends {
			if end <= start {
				continue
			}
			edges := []Edge{EdgeStart, EdgeEnd}
			if end < MinTrimSeconds {
				// the start edge cannot go below zero to make room
				edges = edges[1:]
			}
			for _, edge := range edges {
				for _, ceiling := range []float64{0, 5, 20} {
					c, doc, _, _ := setup(t, Layout{PixelsPerSecond: 50, TrimCeiling: ceiling},
						timeline.Element{ID: "v", Kind: timeline.KindVideo, StartTime: start, EndTime: end})
					c.BeginTrim("v", edge, 0)
					for _, m := range moves {
						c.Move(m)
						el, _ := doc.Element("v")
						if el.EndTime-el.StartTime < MinTrimSeconds-1e-9 {
							t.Fatalf("start=%v end=%v edge=%v ceiling=%v move=%v: duration %v < 1s",
								start, end, edge, ceiling, m, el.EndTime-el.StartTime)
						}
					}
				}
			}
		}
	}
}

func TestTrimStartNeverNegative(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		move       float64
		expected   float64
	}{
		{"short element", 0, 0.5, 0, 0},
		{"short element pulled left", 0.2, 0.5, -500, 0},
		{"short element pushed right", 0.2, 0.5, 500, 0},
		{"exactly minimum", 0, 1, 500, 0},
	}

	for _, tt := range tests {
		c, doc, _, _ := setup(t, Layout{PixelsPerSecond: 50},
			timeline.Element{ID: "v", Kind: timeline.KindText, StartTime: tt.start, EndTime: tt.end})
		c.BeginTrim("v", EdgeStart, 0)
		c.Move(tt.move)

		el, _ := doc.Element("v")
		if el.StartTime != tt.expected {
			t.Errorf("%s: start = %v, expected %v", tt.name, el.StartTime, tt.expected)
		}
		if el.EndTime != tt.end {
			t.Errorf("%s: start trim changed end to %v", tt.name, el.EndTime)
		}
	}
}

func TestTrimCeilingFollowsElement(t *testing.T) {
	tests := []struct {
		name     string
		el       timeline.Element
		ceiling  float64
		move     float64
		expected float64
	}{
		{"grows to media length", timeline.Element{Duration: 8000, EndTime: 6}, 0, 500, 8},
		{"stays inside media length", timeline.Element{Duration: 8000, EndTime: 6}, 0, 50, 7},
		{"unknown length keeps current end", timeline.Element{EndTime: 6}, 0, 500, 6},
		{"unknown length shrinks", timeline.Element{EndTime: 6}, 0, -100, 4},
		{"normalized element caps at 1", timeline.Element{EndTime: 0.5}, 0, 500, 1},
		{"layout ceiling wins", timeline.Element{Duration: 8000, EndTime: 6}, 20, 500, 16},
	}

	for _, tt := range tests {
		el := tt.el
		el.ID = "v"
		el.Kind = timeline.KindVideo
		c, doc, _, _ := setup(t, Layout{PixelsPerSecond: 50, TrimCeiling: tt.ceiling}, el)
		c.BeginTrim("v", EdgeEnd, 0)
		c.Move(tt.move)

		got, _ := doc.Element("v")
		if math.Abs(got.EndTime-tt.expected) > 1e-9 {
			t.Errorf("%s: end = %v, expected %v", tt.name, got.EndTime, tt.expected)
		}
	}
}

func TestScrubClampsToTrack(t *testing.T) {
	c, _, _, state := setup(t, Layout{ContainerLeft: 10, TrackWidth: 200, TotalDuration: 400})

	c.BeginScrub(60)
	if got := state.CurrentTime(); got != 100 {
		t.Errorf("expected 100, got %v", got)
	}
	c.Move(1000)
	if got := state.CurrentTime(); got != 400 {
		t.Errorf("expected clamp to 400, got %v", got)
	}
	c.Move(-20)
	if got := state.CurrentTime(); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
	c.End()
	c.Move(60)
	if got := state.CurrentTime(); got != 0 {
		t.Errorf("move after End should be ignored, got %v", got)
	}
}

func TestSecondGestureIgnoredWhileActive(t *testing.T) {
	c, doc, _, state := setup(t, Layout{PixelsPerSecond: 50},
		timeline.Element{ID: "v", Kind: timeline.KindVideo, StartTime: 0, EndTime: 4})

	if !c.BeginDrag(timeline.Projection{ID: "v", StartAt: 0, EndAt: 100}, 0) {
		t.Fatal("first gesture refused")
	}
	if c.BeginTrim("v", EdgeEnd, 0) || c.BeginScrub(30) {
		t.Fatal("second gesture accepted while dragging")
	}
	if state.CurrentTime() != 0 {
		t.Error("refused scrub moved the indicator")
	}
	if c.State().Kind != Dragging {
		t.Errorf("state changed to %v", c.State().Kind)
	}

	c.End()
	if !c.BeginTrim("v", EdgeEnd, 0) {
		t.Error("gesture refused after End")
	}
	if el, _ := doc.Element("v"); el.EndTime != 4 {
		t.Error("BeginTrim should not mutate")
	}
}

func TestEndWithoutGestureIsNoop(t *testing.T) {
	c, _, _, _ := setup(t, Layout{})
	c.End()
	c.Move(10)
	if c.State().Kind != Idle {
		t.Errorf("expected Idle, got %v", c.State().Kind)
	}
}

func TestTrimUnknownElementRefused(t *testing.T) {
	c, _, _, _ := setup(t, Layout{})
	if c.BeginTrim("missing", EdgeStart, 0) {
		t.Error("expected refusal for unknown element")
	}
}

func TestOverlayDragClampsToDuration(t *testing.T) {
	c, _, store, _ := setup(t, Layout{})
	c.SetSurface(Surface{Left: 0, Width: 100, Duration: 10})
	id := store.Add(overlays.NewText("hi", 24, "#fff", 2, 4))

	c.BeginOverlayDrag(id, 50)
	c.Move(60) // +1s
	o, _ := store.Get(id)
	if o.StartTime != 3 || o.EndTime != 5 {
		t.Errorf("expected [3, 5], got [%v, %v]", o.StartTime, o.EndTime)
	}

	c.Move(500)
	o, _ = store.Get(id)
	if o.StartTime != 8 || o.EndTime != 10 {
		t.Errorf("expected clamp to [8, 10], got [%v, %v]", o.StartTime, o.EndTime)
	}

	c.Move(-500)
	o, _ = store.Get(id)
	if o.StartTime != 0 || o.EndTime != 2 {
		t.Errorf("expected clamp to [0, 2], got [%v, %v]", o.StartTime, o.EndTime)
	}
	c.End()
}

func TestOverlayResizeKeepsGap(t *testing.T) {
	c, _, store, _ := setup(t, Layout{})
	c.SetSurface(Surface{Left: 0, Width: 100, Duration: 10})
	id := store.Add(overlays.NewText("hi", 24, "#fff", 2, 4))

	c.BeginOverlayResize(id, EdgeStart)
	c.Move(90)
	o, _ := store.Get(id)
	if math.Abs(o.StartTime-3.9) > 1e-9 {
		t.Errorf("expected start 3.9, got %v", o.StartTime)
	}
	c.End()

	c.BeginOverlayResize(id, EdgeEnd)
	c.Move(95)
	o, _ = store.Get(id)
	if o.EndTime != 9.5 {
		t.Errorf("expected end 9.5, got %v", o.EndTime)
	}
	c.Move(0)
	o, _ = store.Get(id)
	if math.Abs(o.EndTime-4.0) > 1e-9 {
		t.Errorf("expected end 4.0 (start+0.1), got %v", o.EndTime)
	}
	c.End()
}

func TestClickSeekConvertsToTimelinePixels(t *testing.T) {
	c, _, _, state := setup(t, Layout{PixelsPerSecond: 50})
	c.SetSurface(Surface{Left: 100, Width: 200, Duration: 20})

	c.ClickSeek(200) // half way, 10s
	if got := state.CurrentTime(); got != 500 {
		t.Errorf("expected 500px, got %v", got)
	}
}
