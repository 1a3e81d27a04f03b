package timeline

import (
	"github.com/keagan/cutline/internal/session"
	"github.com/keagan/cutline/pkg/util"
)

// Defaults used when neither the element nor its page carries a duration
const (
	DefaultDurationMs   = 5000.0
	DefaultPixelsPerSec = 50.0
	StaticElementWidth  = 50.0
)

// Projection is the derived timeline view of one element for one pass.
// StartAt, EndAt and Width are timeline pixels; Duration is milliseconds.
type Projection struct {
	ID        string  `json:"id"`
	PageID    string  `json:"pageId"`
	Kind      Kind    `json:"type"`
	Name      string  `json:"name"`
	Lang      string  `json:"lang,omitempty"`
	StartAt   float64 `json:"startAt"`
	EndAt     float64 `json:"endAt"`
	Width     float64 `json:"width"`
	Duration  float64 `json:"duration"`
	Visible   bool    `json:"visible"`
	IsPlaying bool    `json:"isPlaying"`
}

// UpdateKind identifies a deferred document mutation
type UpdateKind int

const (
	UpdateVisibility UpdateKind = iota
	UpdateDelete
	UpdatePlay
)

// Update is a document mutation computed during a pass and applied after it
type Update struct {
	Kind      UpdateKind
	ElementID string
	Visible   bool
	Window    PlayWindow
}

// Pass is the result of one projection: the element views plus the
// mutations to apply once iteration is over.
type Pass struct {
	Elements []Projection
	Updates  []Update
}

// Options configures the projector
type Options struct {
	PixelsPerSecond   float64
	DefaultDurationMs float64
	// LegacyPlayWindow bounds playback to [startAt, duration] instead of
	// [startAt, endAt].
	LegacyPlayWindow bool
}

// Projector derives timeline projections from a Provider
type Projector struct {
	provider Provider
	opts     Options
}

// NewProjector creates a projector over the given provider
func NewProjector(p Provider, opts Options) *Projector {
	if opts.PixelsPerSecond <= 0 {
		opts.PixelsPerSecond = DefaultPixelsPerSec
	}
	if opts.DefaultDurationMs <= 0 {
		opts.DefaultDurationMs = DefaultDurationMs
	}
	return &Projector{provider: p, opts: opts}
}

// Options returns the projector configuration
func (pr *Projector) Options() Options {
	return pr.opts
}

// Compute runs the read-only phase: it derives every projection and collects
// the updates, without mutating the provider. Identical inputs yield
// identical passes.
func (pr *Projector) Compute(state session.Snapshot) Pass {
	pages := pr.provider.Pages()
	providerPlaying := pr.provider.IsPlaying()

	var pass Pass
	videos := 0
	playRequested := false

	for _, page := range pages {
		for _, el := range page.Children {
			if el.Kind == KindVideo {
				videos++
				if videos > 1 {
					pass.Updates = append(pass.Updates, Update{Kind: UpdateDelete, ElementID: el.ID})
					continue
				}
			}

			proj := pr.project(page, el, state)
			pass.Elements = append(pass.Elements, proj)

			if proj.IsPlaying && el.Kind == KindVideo && !providerPlaying && !playRequested {
				playRequested = true
				pass.Updates = append(pass.Updates, Update{
					Kind:      UpdatePlay,
					ElementID: el.ID,
					Window:    pr.playWindow(proj),
				})
			}

			if el.Visible != proj.Visible {
				pass.Updates = append(pass.Updates, Update{
					Kind:      UpdateVisibility,
					ElementID: el.ID,
					Visible:   proj.Visible,
				})
			}
		}
	}

	return pass
}

// Apply runs the mutation phase for updates computed by Compute
func (pr *Projector) Apply(updates []Update) {
	var deletes []string
	for _, u := range updates {
		switch u.Kind {
		case UpdateVisibility:
			pr.provider.SetVisible(u.ElementID, u.Visible)
		case UpdateDelete:
			deletes = append(deletes, u.ElementID)
		case UpdatePlay:
			pr.provider.Play(u.Window)
		}
	}
	pr.provider.DeleteElements(deletes...)
}

// Project computes a pass and applies its updates, returning the projections
func (pr *Projector) Project(state session.Snapshot) []Projection {
	pass := pr.Compute(state)
	pr.Apply(pass.Updates)
	return pass.Elements
}

func (pr *Projector) project(page *Page, el *Element, state session.Snapshot) Projection {
	pps := pr.opts.PixelsPerSecond

	duration := pr.opts.DefaultDurationMs
	switch {
	case el.Custom.Duration != nil:
		duration = *el.Custom.Duration
	case el.Duration > 0:
		duration = el.Duration
	case page.Duration > 0:
		duration = page.Duration
	}

	startAt := util.PixelsFromDuration(page.StartTime+el.AnimationDelay, pps)
	if el.Custom.StartAt != nil {
		startAt = *el.Custom.StartAt
	}

	durationPx := util.PixelsFromDuration(duration, pps)
	endAt := startAt + durationPx
	if el.Custom.EndAt != nil {
		endAt = *el.Custom.EndAt
	}

	width := StaticElementWidth
	if el.Kind == KindVideo {
		width = durationPx
	}

	visible := state.CurrentTime >= startAt && state.CurrentTime <= endAt
	if el.Kind == KindTranscript && el.Lang != state.Language {
		visible = false
	}

	name := el.Name
	if name == "" {
		name = el.ID
	}

	return Projection{
		ID:        el.ID,
		PageID:    page.ID,
		Kind:      el.Kind,
		Name:      name,
		Lang:      el.Lang,
		StartAt:   startAt,
		EndAt:     endAt,
		Width:     width,
		Duration:  duration,
		Visible:   visible,
		IsPlaying: visible && state.Playing,
	}
}

func (pr *Projector) playWindow(p Projection) PlayWindow {
	if pr.opts.LegacyPlayWindow {
		return PlayWindow{Start: p.StartAt, End: p.Duration}
	}
	return PlayWindow{Start: p.StartAt, End: p.EndAt}
}

// MaxEndAt returns the furthest end among projections, or 0 when empty
func MaxEndAt(projections []Projection) float64 {
	furthest := 0.0
	for _, p := range projections {
		if p.EndAt > furthest {
			furthest = p.EndAt
		}
	}
	return furthest
}

// Find returns the projection with the given id
func Find(projections []Projection, id string) (Projection, bool) {
	for _, p := range projections {
		if p.ID == id {
			return p, true
		}
	}
	return Projection{}, false
}
