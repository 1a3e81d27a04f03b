package timeline

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Provider is the canvas/element collaborator the projection reads from and
// patches. Document is the in-process implementation.
type Provider interface {
	Pages() []*Page
	SetVisible(id string, visible bool)
	DeleteElements(ids ...string)
	Play(w PlayWindow)
	Stop()
	IsPlaying() bool
}

// Document owns the pages and elements of a design
type Document struct {
	mu         sync.RWMutex
	width      float64
	height     float64
	pages      []*Page
	transcript TranscriptMeta
	playing    bool
	window     PlayWindow
}

// NewDocument creates an empty document with one page
func NewDocument(width, height float64) *Document {
	return &Document{
		width:  width,
		height: height,
		pages:  []*Page{{ID: "page-1", Children: make([]*Element, 0)}},
	}
}

// Size returns the canvas size
func (d *Document) Size() (float64, float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.width, d.height
}

// Pages returns a deep copy of all pages
func (d *Document) Pages() []*Page {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Page, len(d.pages))
	for i, p := range d.pages {
		out[i] = p.clone()
	}
	return out
}

// AddPage appends a page
func (d *Document) AddPage(p Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.Children == nil {
		p.Children = make([]*Element, 0)
	}
	d.pages = append(d.pages, p.clone())
}

// AddElement adds an element to the page with the given id, or to the first
// page when pageID is empty.
func (d *Document) AddElement(pageID string, el Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	page := d.pageLocked(pageID)
	if page == nil {
		return fmt.Errorf("page %q not found", pageID)
	}
	page.Children = append(page.Children, el.clone())
	return nil
}

// Element returns a copy of the element with the given id
func (d *Document) Element(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	el := d.elementLocked(id)
	if el == nil {
		return Element{}, false
	}
	return *el.clone(), true
}

// Elements returns copies of all elements in page order
func (d *Document) Elements() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Element
	for _, p := range d.pages {
		for _, el := range p.Children {
			out = append(out, *el.clone())
		}
	}
	return out
}

// SetVisible patches an element's visibility flag
func (d *Document) SetVisible(id string, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.elementLocked(id); el != nil {
		el.Visible = visible
	}
}

// SetCustomWindow overrides an element's timeline placement, in pixels
func (d *Document) SetCustomWindow(id string, startAt, endAt float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.elementLocked(id); el != nil {
		el.Custom.StartAt = Float(startAt)
		el.Custom.EndAt = Float(endAt)
	}
}

// SetTrimStart sets an element's trim start, in seconds
func (d *Document) SetTrimStart(id string, start float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.elementLocked(id); el != nil {
		el.StartTime = start
	}
}

// SetTrimEnd sets an element's trim end, in seconds
func (d *Document) SetTrimEnd(id string, end float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el := d.elementLocked(id); el != nil {
		el.EndTime = end
	}
}

// DeleteElements removes elements by id; unknown ids are ignored
func (d *Document) DeleteElements(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pages {
		kept := p.Children[:0]
		for _, el := range p.Children {
			if !drop[el.ID] {
				kept = append(kept, el)
			}
		}
		p.Children = kept
	}
}

// Play starts playback of the video element within the window
func (d *Document) Play(w PlayWindow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = true
	d.window = w
}

// Stop halts video playback
func (d *Document) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
}

// IsPlaying reports whether video playback is running
func (d *Document) IsPlaying() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.playing
}

// PlayWindow returns the last requested playback window
func (d *Document) PlayWindow() PlayWindow {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.window
}

// Transcript returns the last transcript run recorded on the document
func (d *Document) Transcript() TranscriptMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	meta := d.transcript
	meta.Segments = append([]Segment(nil), d.transcript.Segments...)
	return meta
}

// SetTranscript records a transcript run on the document
func (d *Document) SetTranscript(meta TranscriptMeta) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transcript = meta
}

// FirstVideo returns the first video element in document order
func (d *Document) FirstVideo() (Element, bool) {
	for _, el := range d.Elements() {
		if el.Kind == KindVideo {
			return el, true
		}
	}
	return Element{}, false
}

// Languages lists the distinct transcript languages in document order
func (d *Document) Languages() []string {
	var langs []string
	seen := make(map[string]bool)
	for _, el := range d.Elements() {
		if el.Kind == KindTranscript && !seen[el.Lang] {
			seen[el.Lang] = true
			langs = append(langs, el.Lang)
		}
	}
	return langs
}

type documentJSON struct {
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
	Pages  []*Page        `json:"pages"`
	Custom TranscriptMeta `json:"custom"`
}

// MarshalJSON encodes the document as design JSON
func (d *Document) MarshalJSON() ([]byte, error) {
	w, h := d.Size()
	return json.Marshal(documentJSON{
		Width:  w,
		Height: h,
		Pages:  d.Pages(),
		Custom: d.Transcript(),
	})
}

// UnmarshalJSON replaces the document contents with decoded design JSON
func (d *Document) UnmarshalJSON(data []byte) error {
	var doc documentJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode design: %w", err)
	}
	for _, p := range doc.Pages {
		if p == nil {
			return fmt.Errorf("failed to decode design: null page")
		}
		children := make([]*Element, 0, len(p.Children))
		for _, el := range p.Children {
			if el != nil {
				children = append(children, el)
			}
		}
		p.Children = children
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.width = doc.Width
	d.height = doc.Height
	d.pages = doc.Pages
	d.transcript = doc.Custom
	return nil
}

func (d *Document) pageLocked(id string) *Page {
	if id == "" {
		if len(d.pages) == 0 {
			d.pages = append(d.pages, &Page{ID: "page-1", Children: make([]*Element, 0)})
		}
		return d.pages[0]
	}
	for _, p := range d.pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (d *Document) elementLocked(id string) *Element {
	for _, p := range d.pages {
		for _, el := range p.Children {
			if el.ID == id {
				return el
			}
		}
	}
	return nil
}
