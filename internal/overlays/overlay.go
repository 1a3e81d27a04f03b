package overlays

import (
	"fmt"
	"sort"
)

// Kind discriminates overlay variants
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// MinSize is the smallest on-canvas width or height an overlay may have.
const MinSize = 50.0

// Overlay is a timed text or image annotation composited onto a video.
// Position is normalized to the editing canvas, Size is in canvas pixels.
type Overlay struct {
	ID        string       `json:"id" yaml:"id"`
	Kind      Kind         `json:"type" yaml:"type"`
	StartTime float64      `json:"startTime" yaml:"start_time"`
	EndTime   float64      `json:"endTime" yaml:"end_time"`
	Position  Position     `json:"position" yaml:"position"`
	Size      Size         `json:"size" yaml:"size"`
	Transform Transform    `json:"transform" yaml:"transform"`
	Text      *TextFields  `json:"text,omitempty" yaml:"text,omitempty"`
	Image     *ImageFields `json:"image,omitempty" yaml:"image,omitempty"`
}

// Position is center-relative and normalized to 0..1
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size in canvas pixels
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Transform holds pixel offsets from the canvas center
type Transform struct {
	TranslateX float64 `json:"translateX" yaml:"translate_x"`
	TranslateY float64 `json:"translateY" yaml:"translate_y"`
}

// TextFields is the text variant payload
type TextFields struct {
	Text     string  `json:"text" yaml:"text"`
	FontSize float64 `json:"fontSize" yaml:"font_size"`
	Color    string  `json:"color" yaml:"color"`
}

// ImageFields is the image variant payload
type ImageFields struct {
	Ref    string  `json:"ref" yaml:"ref"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Duration returns the visible window length in seconds
func (o Overlay) Duration() float64 {
	return o.EndTime - o.StartTime
}

// ActiveAt reports whether t falls inside the overlay window, both ends inclusive
func (o Overlay) ActiveAt(t float64) bool {
	return t >= o.StartTime && t <= o.EndTime
}

// Validate checks the overlay invariants
func (o Overlay) Validate() error {
	if o.EndTime <= o.StartTime {
		return fmt.Errorf("overlay %s: end time %.3f must be after start time %.3f", o.ID, o.EndTime, o.StartTime)
	}
	if o.Position.X < 0 || o.Position.X > 1 || o.Position.Y < 0 || o.Position.Y > 1 {
		return fmt.Errorf("overlay %s: position (%.3f, %.3f) outside 0..1", o.ID, o.Position.X, o.Position.Y)
	}
	switch o.Kind {
	case KindText:
		if o.Text == nil {
			return fmt.Errorf("overlay %s: text overlay without text fields", o.ID)
		}
	case KindImage:
		if o.Image == nil || o.Image.Ref == "" {
			return fmt.Errorf("overlay %s: image overlay without image reference", o.ID)
		}
	default:
		return fmt.Errorf("overlay %s: unknown type %q", o.ID, o.Kind)
	}
	return nil
}

// clone returns a deep copy so snapshots never alias store state
func (o Overlay) clone() Overlay {
	if o.Text != nil {
		t := *o.Text
		o.Text = &t
	}
	if o.Image != nil {
		img := *o.Image
		o.Image = &img
	}
	return o
}

// normalize clamps position and size into their valid ranges
func (o *Overlay) normalize() {
	o.Position.X = clamp01(o.Position.X)
	o.Position.Y = clamp01(o.Position.Y)
	if o.Size.Width != 0 && o.Size.Width < MinSize {
		o.Size.Width = MinSize
	}
	if o.Size.Height != 0 && o.Size.Height < MinSize {
		o.Size.Height = MinSize
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Registry manages named image assets that overlays may reference
type Registry struct {
	assets map[string]string
}

// NewRegistry creates a new asset registry
func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[string]string),
	}
}

// Register adds an asset to the registry
func (r *Registry) Register(name, path string) {
	r.assets[name] = path
}

// Get retrieves an asset path by name
func (r *Registry) Get(name string) (string, bool) {
	path, ok := r.assets[name]
	return path, ok
}

// Resolve maps an image reference through the registry, returning the
// reference unchanged when it is not a registered name.
func (r *Registry) Resolve(ref string) string {
	if path, ok := r.assets[ref]; ok {
		return path
	}
	return ref
}

// List returns all registered asset names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.assets))
	for name := range r.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
