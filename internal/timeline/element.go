package timeline

// Kind discriminates canvas element variants
type Kind string

const (
	KindVideo      Kind = "video"
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindTranscript Kind = "transcript"
)

// Custom holds per-element timeline overrides. StartAt and EndAt are in
// timeline pixels, Duration in milliseconds. Nil means "not overridden".
type Custom struct {
	StartAt  *float64 `json:"startAt,omitempty"`
	EndAt    *float64 `json:"endAt,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// Element is a canvas element as seen by the timeline. Duration and
// AnimationDelay are milliseconds; StartTime and EndTime are the trim points
// set from the timeline handles, in seconds.
type Element struct {
	ID             string  `json:"id"`
	Kind           Kind    `json:"type"`
	Name           string  `json:"name,omitempty"`
	Src            string  `json:"src,omitempty"`
	Text           string  `json:"text,omitempty"`
	Lang           string  `json:"lang,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	AnimationDelay float64 `json:"animationDelay,omitempty"`
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	Visible        bool    `json:"visible"`
	Custom         Custom  `json:"custom"`

	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
}

// Page groups elements that share a start time and default duration
type Page struct {
	ID        string     `json:"id"`
	StartTime float64    `json:"startTime"`
	Duration  float64    `json:"duration,omitempty"`
	Children  []*Element `json:"children"`
}

// PlayWindow bounds video playback, in timeline pixels
type PlayWindow struct {
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
}

// Segment is one transcript line with its time window in seconds
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptMeta is the document-level record of the last transcript run
type TranscriptMeta struct {
	Segments  []Segment `json:"langSegment,omitempty"`
	ProcessID string    `json:"processID,omitempty"`
}

func (e *Element) clone() *Element {
	c := *e
	c.Custom = Custom{
		StartAt:  clonePtr(e.Custom.StartAt),
		EndAt:    clonePtr(e.Custom.EndAt),
		Duration: clonePtr(e.Custom.Duration),
	}
	return &c
}

func (p *Page) clone() *Page {
	c := *p
	c.Children = make([]*Element, len(p.Children))
	for i, el := range p.Children {
		c.Children[i] = el.clone()
	}
	return &c
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v, for filling optional fields
func Float(v float64) *float64 {
	return &v
}
