package gui

import (
	"path/filepath"
	"sync"

	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/ffmpeg"
	"github.com/keagan/cutline/internal/interaction"
	"github.com/keagan/cutline/internal/overlays"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/session"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/keagan/cutline/pkg/util"
)

// videoElementID is the single video element the editor manages
const videoElementID = "video"

// DefaultTextSeconds is how long a new text overlay stays on screen
const DefaultTextSeconds = 2.0

// View is what the window renders after every change
type View struct {
	Video    string
	Elements []timeline.Projection
	Overlays []overlays.Overlay
	Current  float64
	MaxEnd   float64
	Clock    string
	Playing  bool
}

// Model is the editor state behind the window. It owns the document, the
// overlay store and the session, and routes every edit through the
// projector and the gesture controller.
type Model struct {
	mu     sync.Mutex
	config *config.Config

	doc        *timeline.Document
	store      *overlays.Store
	state      *session.State
	projector  *timeline.Projector
	controller *interaction.Controller

	video       string
	videoWidth  int
	videoHeight int
}

// NewModel creates an empty editor model
func NewModel(cfg *config.Config) *Model {
	doc := timeline.NewDocument(cfg.Canvas.Width, cfg.Canvas.Height)
	store := overlays.NewStore()
	state := session.New(cfg.Transcript.Language)

	return &Model{
		config: cfg,
		doc:    doc,
		store:  store,
		state:  state,
		projector: timeline.NewProjector(doc, timeline.Options{
			PixelsPerSecond:   cfg.Timeline.PixelsPerSecond,
			DefaultDurationMs: cfg.Timeline.DefaultDurationMs,
			LegacyPlayWindow:  cfg.Timeline.LegacyPlayWindow,
		}),
		controller: interaction.New(doc, store, state, interaction.Layout{
			PixelsPerSecond: cfg.Timeline.PixelsPerSecond,
		}),
	}
}

// State exposes the session for the playback clock
func (m *Model) State() *session.State {
	return m.state
}

// Document exposes the document, which also stops video playback on toggle
func (m *Model) Document() *timeline.Document {
	return m.doc
}

// LoadVideo replaces the video element with the probed file
func (m *Model) LoadVideo(path string, info *ffmpeg.VideoInfo) error {
	m.mu.Lock()
	m.video = path
	m.videoWidth = info.Width
	m.videoHeight = info.Height
	m.mu.Unlock()

	m.doc.DeleteElements(videoElementID)
	err := m.doc.AddElement("", timeline.Element{
		ID:       videoElementID,
		Kind:     timeline.KindVideo,
		Name:     filepath.Base(path),
		Src:      path,
		Duration: float64(info.Duration.Milliseconds()),
		EndTime:  info.Duration.Seconds(),
		Visible:  true,
	})
	if err != nil {
		return err
	}
	m.state.SetCurrentTime(0)
	m.syncLayout()
	return nil
}

// AddText adds a white text overlay starting at the current time
func (m *Model) AddText(text string, fontSize float64) string {
	start := m.seconds(m.state.CurrentTime())
	end := start + DefaultTextSeconds
	if total := m.seconds(m.MaxEnd()); total > 0 && end > total {
		end = total
		start = max(0, end-DefaultTextSeconds)
	}
	return m.store.Add(overlays.NewText(text, fontSize, "white", start, end))
}

// RemoveOverlay deletes an overlay
func (m *Model) RemoveOverlay(id string) {
	m.store.Remove(id)
}

// ShiftOverlay moves an overlay window by delta seconds, kept inside the
// video
func (m *Model) ShiftOverlay(id string, delta float64) {
	if !m.controller.BeginOverlayDrag(id, 0) {
		return
	}
	m.controller.Move(delta)
	m.controller.End()
}

// MoveElement places an element's timeline window at startPx timeline
// pixels, keeping its width
func (m *Model) MoveElement(id string, startPx float64) {
	for _, p := range m.projector.Project(m.state.Snapshot()) {
		if p.ID != id {
			continue
		}
		if !m.controller.BeginDrag(p, p.StartAt) {
			return
		}
		m.controller.Move(startPx)
		m.controller.End()
		m.syncLayout()
		return
	}
}

// TrimElement moves one trim handle of an element by delta seconds
func (m *Model) TrimElement(id string, edge interaction.Edge, delta float64) {
	if !m.controller.BeginTrim(id, edge, 0) {
		return
	}
	m.controller.Move(delta * m.pixelsPerSecond())
	m.controller.End()
}

// MarkIn trims the video to start at the current time
func (m *Model) MarkIn() {
	m.trimVideoToCurrent(interaction.EdgeStart)
}

// MarkOut trims the video to end at the current time
func (m *Model) MarkOut() {
	m.trimVideoToCurrent(interaction.EdgeEnd)
}

func (m *Model) trimVideoToCurrent(edge interaction.Edge) {
	el, ok := m.doc.Element(videoElementID)
	if !ok {
		return
	}
	at := m.seconds(m.state.CurrentTime())
	if edge == interaction.EdgeStart {
		m.TrimElement(videoElementID, edge, at-el.StartTime)
		return
	}
	m.TrimElement(videoElementID, edge, at-el.EndTime)
}

// Scrub moves the current time to px timeline pixels
func (m *Model) Scrub(px float64) {
	if !m.controller.BeginScrub(px) {
		return
	}
	m.controller.End()
}

// MaxEnd returns the end of the timeline in pixels
func (m *Model) MaxEnd() float64 {
	return timeline.MaxEndAt(m.projector.Project(m.state.Snapshot()))
}

// View projects the document at the current time
func (m *Model) View() View {
	snap := m.state.Snapshot()
	elements := m.projector.Project(snap)
	maxEnd := timeline.MaxEndAt(elements)

	m.mu.Lock()
	video := m.video
	m.mu.Unlock()

	return View{
		Video:    video,
		Elements: elements,
		Overlays: m.store.All(),
		Current:  snap.CurrentTime,
		MaxEnd:   maxEnd,
		Clock:    util.FormatClock(m.seconds(snap.CurrentTime)) + " / " + util.FormatClock(m.seconds(maxEnd)),
		Playing:  snap.Playing,
	}
}

// Project returns the export project for the current edit
func (m *Model) Project() *pipeline.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &pipeline.Project{
		Name:     filepath.Base(m.video),
		Video:    m.video,
		Canvas:   pipeline.Canvas{Width: float64(m.videoWidth), Height: float64(m.videoHeight)},
		Overlays: m.store.All(),
		Document: m.doc,
	}
}

// syncLayout points the controller at the slider and overlay geometry.
// Both surfaces are laid out in their own units so pointer positions are
// times.
func (m *Model) syncLayout() {
	maxEnd := m.MaxEnd()
	m.controller.SetLayout(interaction.Layout{
		TrackWidth:      maxEnd,
		PixelsPerSecond: m.config.Timeline.PixelsPerSecond,
		TotalDuration:   maxEnd,
	})
	seconds := m.seconds(maxEnd)
	m.controller.SetSurface(interaction.Surface{Width: seconds, Duration: seconds})
}

func (m *Model) seconds(px float64) float64 {
	return util.SecondsFromPixels(px, m.config.Timeline.PixelsPerSecond)
}

func (m *Model) pixelsPerSecond() float64 {
	if m.config.Timeline.PixelsPerSecond <= 0 {
		return timeline.DefaultPixelsPerSec
	}
	return m.config.Timeline.PixelsPerSecond
}
