package overlays

import (
	"sync"

	"github.com/google/uuid"
)

// Patch carries a partial overlay update. Nil fields are left untouched.
type Patch struct {
	StartTime *float64
	EndTime   *float64
	Position  *Position
	Size      *Size
	Transform *Transform
	Text      *string
	FontSize  *float64
	Color     *string
	ImageRef  *string
}

// Store is the single owner of overlay state. Slice order is z-order and
// compositing order: later entries are drawn on top.
type Store struct {
	mu       sync.RWMutex
	overlays []Overlay
	onChange []func([]Overlay)
}

// NewStore creates an empty overlay store
func NewStore() *Store {
	return &Store{
		overlays: make([]Overlay, 0),
	}
}

// NewID generates a unique overlay id
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewText builds a text overlay with a fresh id
func NewText(text string, fontSize float64, color string, start, end float64) Overlay {
	return Overlay{
		ID:        NewID(),
		Kind:      KindText,
		StartTime: start,
		EndTime:   end,
		Position:  Position{X: 0.5, Y: 0.5},
		Text:      &TextFields{Text: text, FontSize: fontSize, Color: color},
	}
}

// NewImage builds an image overlay with a fresh id
func NewImage(ref string, width, height, start, end float64) Overlay {
	return Overlay{
		ID:        NewID(),
		Kind:      KindImage,
		StartTime: start,
		EndTime:   end,
		Position:  Position{X: 0.5, Y: 0.5},
		Size:      Size{Width: width, Height: height},
		Image:     &ImageFields{Ref: ref, Width: width, Height: height},
	}
}

// Add appends an overlay on top of the stack. An empty id is filled in; an id
// that is already present replaces the existing entry in place.
func (s *Store) Add(o Overlay) string {
	if o.ID == "" {
		o.ID = NewID()
	}
	o = o.clone()
	o.normalize()

	s.mu.Lock()
	replaced := false
	for i := range s.overlays {
		if s.overlays[i].ID == o.ID {
			s.overlays[i] = o
			replaced = true
			break
		}
	}
	if !replaced {
		s.overlays = append(s.overlays, o)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return o.ID
}

// Update merges a patch into the overlay with the given id. Unknown ids are
// ignored. A time change that would leave end <= start is dropped.
func (s *Store) Update(id string, p Patch) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	o := s.overlays[idx]
	applyPatch(&o, p)
	s.overlays[idx] = o
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Remove deletes the overlay with the given id, if present
func (s *Store) Remove(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.overlays = append(s.overlays[:idx], s.overlays[idx+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Get returns a copy of the overlay with the given id
func (s *Store) Get(id string) (Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Overlay{}, false
	}
	return s.overlays[idx].clone(), true
}

// All returns an immutable snapshot in z-order
func (s *Store) All() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of overlays
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

// ActiveAt returns the overlays visible at time t, in z-order
func (s *Store) ActiveAt(t float64) []Overlay {
	var active []Overlay
	for _, o := range s.All() {
		if o.ActiveAt(t) {
			active = append(active, o)
		}
	}
	return active
}

// OnChange registers a callback that receives a snapshot after every mutation
func (s *Store) OnChange(fn func([]Overlay)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) notify(snap []Overlay) {
	s.mu.RLock()
	callbacks := append([]func([]Overlay){}, s.onChange...)
	s.mu.RUnlock()

	for _, fn := range callbacks {
		fn(snap)
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.overlays {
		if s.overlays[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []Overlay {
	out := make([]Overlay, len(s.overlays))
	for i, o := range s.overlays {
		out[i] = o.clone()
	}
	return out
}

func applyPatch(o *Overlay, p Patch) {
	start, end := o.StartTime, o.EndTime
	if p.StartTime != nil {
		start = *p.StartTime
	}
	if p.EndTime != nil {
		end = *p.EndTime
	}
	if end > start {
		o.StartTime, o.EndTime = start, end
	}

	if p.Position != nil {
		o.Position = *p.Position
	}
	if p.Size != nil {
		o.Size = *p.Size
	}
	if p.Transform != nil {
		o.Transform = *p.Transform
	}

	if o.Text != nil {
		if p.Text != nil {
			o.Text.Text = *p.Text
		}
		if p.FontSize != nil {
			o.Text.FontSize = *p.FontSize
		}
		if p.Color != nil {
			o.Text.Color = *p.Color
		}
	}
	if o.Image != nil && p.ImageRef != nil {
		o.Image.Ref = *p.ImageRef
	}

	o.normalize()
	if p.Size != nil && o.Image != nil {
		o.Image.Width = o.Size.Width
		o.Image.Height = o.Size.Height
	}
}
