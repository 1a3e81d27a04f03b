// Package interaction turns pointer gestures on the timeline into time and
// placement updates. Only one gesture is active at a time.
package interaction

import (
	"math"
	"sync"

	"github.com/keagan/cutline/internal/overlays"
	"github.com/keagan/cutline/internal/session"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/keagan/cutline/pkg/util"
)

// StateKind names the controller states
type StateKind int

const (
	Idle StateKind = iota
	Dragging
	Trimming
	ScrubbingIndicator
	DraggingOverlay
	ResizingOverlay
)

func (k StateKind) String() string {
	switch k {
	case Dragging:
		return "dragging"
	case Trimming:
		return "trimming"
	case ScrubbingIndicator:
		return "scrubbing"
	case DraggingOverlay:
		return "dragging-overlay"
	case ResizingOverlay:
		return "resizing-overlay"
	default:
		return "idle"
	}
}

// Edge selects a trim handle
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

// MinTrimSeconds is the shortest element a trim may leave
const MinTrimSeconds = 1.0

// MinOverlaySeconds is the shortest overlay a resize may leave
const MinOverlaySeconds = 0.1

// Layout describes the element timeline surface. ContainerLeft and
// TrackWidth are screen pixels; TotalDuration is in the same unit as the
// session's current time (timeline pixels).
type Layout struct {
	ContainerLeft   float64
	TrackWidth      float64
	PixelsPerSecond float64
	TotalDuration   float64
	// TrimCeiling caps the end trim point, in seconds. Zero derives the cap
	// from the trimmed element: the larger of its length, its current end
	// and 1.
	TrimCeiling float64
}

// Surface describes the overlay timeline grid, which is laid out in seconds
// across its full width.
type Surface struct {
	Left     float64
	Width    float64
	Duration float64
}

// Session is the state of the active gesture
type Session struct {
	Kind          StateKind
	TargetID      string
	Edge          Edge
	PixelOffset   float64
	WidthPx       float64
	PointerOrigin float64
	OriginStart   float64
	OriginEnd     float64
	Ceiling       float64
}

// Elements is the subset of the document the controller patches
type Elements interface {
	Element(id string) (timeline.Element, bool)
	SetCustomWindow(id string, startAt, endAt float64)
	SetTrimStart(id string, start float64)
	SetTrimEnd(id string, end float64)
}

// Controller is the gesture state machine
type Controller struct {
	mu       sync.Mutex
	layout   Layout
	surface  Surface
	elements Elements
	overlays *overlays.Store
	state    *session.State
	active   Session
}

// New creates a controller in the Idle state
func New(elements Elements, store *overlays.Store, state *session.State, layout Layout) *Controller {
	return &Controller{
		layout:   layout,
		elements: elements,
		overlays: store,
		state:    state,
	}
}

// SetLayout updates the element timeline geometry
func (c *Controller) SetLayout(l Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layout = l
}

// SetSurface updates the overlay grid geometry
func (c *Controller) SetSurface(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = s
}

// State returns a copy of the active gesture session
func (c *Controller) State() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// BeginDrag starts moving an element body. It returns false when another
// gesture is already active.
func (c *Controller) BeginDrag(target timeline.Projection, pointerX float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Kind != Idle {
		return false
	}

	c.active = Session{
		Kind:        Dragging,
		TargetID:    target.ID,
		PixelOffset: pointerX - c.layout.ContainerLeft - target.StartAt,
		WidthPx:     target.EndAt - target.StartAt,
	}
	return true
}

// BeginTrim starts dragging a trim handle of an element
func (c *Controller) BeginTrim(id string, edge Edge, pointerX float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Kind != Idle {
		return false
	}

	el, ok := c.elements.Element(id)
	if !ok {
		return false
	}
	c.active = Session{
		Kind:          Trimming,
		TargetID:      id,
		Edge:          edge,
		PointerOrigin: pointerX,
		OriginStart:   el.StartTime,
		OriginEnd:     el.EndTime,
		Ceiling:       c.trimCeilingLocked(el),
	}
	return true
}

// BeginScrub grabs the time indicator and moves it to the pointer
func (c *Controller) BeginScrub(pointerX float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Kind != Idle {
		return false
	}

	c.active = Session{Kind: ScrubbingIndicator}
	c.scrubLocked(pointerX)
	return true
}

// BeginOverlayDrag starts moving an overlay bar on the overlay grid
func (c *Controller) BeginOverlayDrag(id string, pointerX float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Kind != Idle {
		return false
	}

	o, ok := c.overlays.Get(id)
	if !ok {
		return false
	}
	c.active = Session{
		Kind:          DraggingOverlay,
		TargetID:      id,
		PointerOrigin: pointerX,
		OriginStart:   o.StartTime,
		OriginEnd:     o.EndTime,
	}
	return true
}

// BeginOverlayResize starts dragging an overlay bar edge
func (c *Controller) BeginOverlayResize(id string, edge Edge) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Kind != Idle {
		return false
	}

	if _, ok := c.overlays.Get(id); !ok {
		return false
	}
	c.active = Session{Kind: ResizingOverlay, TargetID: id, Edge: edge}
	return true
}

// ClickSeek moves the current time to a click on the overlay grid
func (c *Controller) ClickSeek(pointerX float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetCurrentTime(c.surfaceTimeLocked(pointerX) * c.pixelsPerSecondLocked())
}

// Move handles a pointer move for whichever gesture is active. Moves while
// Idle are ignored.
func (c *Controller) Move(pointerX float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.active.Kind {
	case Dragging:
		c.dragLocked(pointerX)
	case Trimming:
		c.trimLocked(pointerX)
	case ScrubbingIndicator:
		c.scrubLocked(pointerX)
	case DraggingOverlay:
		c.dragOverlayLocked(pointerX)
	case ResizingOverlay:
		c.resizeOverlayLocked(pointerX)
	}
}

// End is the global pointer-up: any gesture returns to Idle
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = Session{}
}

func (c *Controller) dragLocked(pointerX float64) {
	start := pointerX - c.layout.ContainerLeft - c.active.PixelOffset
	if start < 0 {
		start = 0
	}
	c.elements.SetCustomWindow(c.active.TargetID, start, start+c.active.WidthPx)
}

func (c *Controller) trimLocked(pointerX float64) {
	dt := util.SecondsFromPixels(pointerX-c.active.PointerOrigin, c.pixelsPerSecondLocked())

	if c.active.Edge == EdgeStart {
		// an element shorter than the minimum can only reach zero
		limit := math.Max(0, c.active.OriginEnd-MinTrimSeconds)
		start := util.Clamp(c.active.OriginStart+dt, 0, limit)
		c.elements.SetTrimStart(c.active.TargetID, start)
		return
	}

	end := math.Min(c.active.Ceiling, c.active.OriginEnd+dt)
	end = math.Max(end, c.active.OriginStart+MinTrimSeconds)
	c.elements.SetTrimEnd(c.active.TargetID, end)
}

func (c *Controller) trimCeilingLocked(el timeline.Element) float64 {
	if c.layout.TrimCeiling > 0 {
		return c.layout.TrimCeiling
	}
	return math.Max(1, math.Max(el.Duration/1000, el.EndTime))
}

func (c *Controller) scrubLocked(pointerX float64) {
	offset := pointerX - c.layout.ContainerLeft
	if c.layout.TrackWidth <= 0 {
		c.state.SetCurrentTime(math.Max(0, offset))
		return
	}
	t := offset / c.layout.TrackWidth * c.layout.TotalDuration
	c.state.SetCurrentTime(util.Clamp(t, 0, c.layout.TotalDuration))
}

func (c *Controller) dragOverlayLocked(pointerX float64) {
	if c.surface.Width <= 0 {
		return
	}
	dt := (pointerX - c.active.PointerOrigin) / c.surface.Width * c.surface.Duration
	length := c.active.OriginEnd - c.active.OriginStart

	start := util.Clamp(c.active.OriginStart+dt, 0, math.Max(0, c.surface.Duration-length))
	end := start + length
	c.overlays.Update(c.active.TargetID, overlays.Patch{StartTime: &start, EndTime: &end})
}

func (c *Controller) resizeOverlayLocked(pointerX float64) {
	o, ok := c.overlays.Get(c.active.TargetID)
	if !ok {
		return
	}
	t := c.surfaceTimeLocked(pointerX)

	if c.active.Edge == EdgeStart {
		start := math.Min(t, o.EndTime-MinOverlaySeconds)
		c.overlays.Update(o.ID, overlays.Patch{StartTime: &start})
		return
	}
	end := math.Max(t, o.StartTime+MinOverlaySeconds)
	c.overlays.Update(o.ID, overlays.Patch{EndTime: &end})
}

func (c *Controller) surfaceTimeLocked(pointerX float64) float64 {
	if c.surface.Width <= 0 {
		return 0
	}
	t := (pointerX - c.surface.Left) / c.surface.Width * c.surface.Duration
	return util.Clamp(t, 0, c.surface.Duration)
}

func (c *Controller) pixelsPerSecondLocked() float64 {
	if c.layout.PixelsPerSecond <= 0 {
		return timeline.DefaultPixelsPerSec
	}
	return c.layout.PixelsPerSecond
}
