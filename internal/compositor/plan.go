package compositor

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/keagan/cutline/internal/ffmpeg"
	"github.com/keagan/cutline/internal/overlays"
	"github.com/keagan/cutline/pkg/util"
)

var (
	// ErrNoVideo is returned when a request carries no source video
	ErrNoVideo = errors.New("no source video")
	// ErrAspectMismatch is returned under the strict policy when the canvas
	// and the video do not share an aspect ratio
	ErrAspectMismatch = errors.New("canvas and video aspect ratios differ")
)

// AspectPolicy selects how canvas positions map onto video pixels
type AspectPolicy string

const (
	// AspectLetterbox maps through the rectangle the video occupies when
	// fitted inside the canvas
	AspectLetterbox AspectPolicy = "letterbox"
	// AspectStrict refuses canvases whose aspect ratio differs from the video
	AspectStrict AspectPolicy = "strict"
)

// aspectTolerance is the relative aspect difference treated as equal
const aspectTolerance = 0.01

// Workspace file names
const (
	VideoName  = "input.mp4"
	FontName   = "font.ttf"
	OutputName = "output.mp4"
)

// Source references media bytes: inline Data wins over Ref, which may be
// an http(s) URL, a data: URL or a local path.
type Source struct {
	Ref  string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Data []byte `json:"-" yaml:"-"`
}

// Empty reports whether the source points at nothing
func (s Source) Empty() bool {
	return s.Ref == "" && len(s.Data) == 0
}

// Request describes one compositing job
type Request struct {
	Video       Source
	VideoWidth  int
	VideoHeight int
	// CanvasWidth and CanvasHeight are the editing surface dimensions the
	// overlays were positioned on; zero means the video dimensions.
	CanvasWidth  float64
	CanvasHeight float64
	Overlays     []overlays.Overlay
	Audio        *Source
	Font         *Source
	AspectPolicy AspectPolicy
	AudioCodec   string
	Preset       string
}

// InputKind tags plan inputs
type InputKind string

const (
	InputVideo InputKind = "video"
	InputImage InputKind = "image"
	InputAudio InputKind = "audio"
)

// Input is one "-i" argument of the plan, in index order
type Input struct {
	Kind   InputKind
	Name   string
	Source Source
}

// Stage is the filter work for one overlay
type Stage struct {
	OverlayID string
	Kind      overlays.Kind
	Chains    []ffmpeg.Chain
}

// Output returns the label the stage writes
func (s Stage) Output() string {
	return s.Chains[len(s.Chains)-1].Output
}

// Plan is the complete compositing description for the engine
type Plan struct {
	Inputs     []Input
	Font       *Source
	Stages     []Stage
	AudioMap   string
	AudioCodec string
	Preset     string
	Output     string
}

// Graph assembles the stages into a filter graph
func (p *Plan) Graph() *ffmpeg.Graph {
	g := ffmpeg.NewGraph()
	for _, s := range p.Stages {
		for _, c := range s.Chains {
			g.Add(c.Inputs, c.Filters, c.Output)
		}
	}
	return g
}

// FilterGraph returns the filter_complex string, empty without overlays
func (p *Plan) FilterGraph() string {
	return p.Graph().String()
}

// Args returns the engine argument vector
func (p *Plan) Args() []string {
	var args []string
	for _, in := range p.Inputs {
		args = append(args, "-i", in.Name)
	}

	if len(p.Stages) > 0 {
		args = append(args,
			"-filter_complex", p.FilterGraph(),
			"-map", "["+p.Stages[len(p.Stages)-1].Output()+"]",
		)
		if p.Preset != "" {
			args = append(args, "-preset", p.Preset)
		}
	} else {
		args = append(args, "-c:v", "copy", "-map", "0:v")
	}

	args = append(args, "-map", p.AudioMap, "-c:a", p.AudioCodec, p.Output)
	return args
}

// BuildPlan turns a request into a plan. It performs no I/O.
func BuildPlan(req Request) (*Plan, error) {
	if req.Video.Empty() {
		return nil, ErrNoVideo
	}
	if req.VideoWidth <= 0 || req.VideoHeight <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", req.VideoWidth, req.VideoHeight)
	}

	m, err := newMapping(req)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Inputs:     []Input{{Kind: InputVideo, Name: VideoName, Source: req.Video}},
		AudioCodec: req.AudioCodec,
		Preset:     req.Preset,
		Output:     OutputName,
	}
	if plan.AudioCodec == "" {
		plan.AudioCodec = ffmpeg.DefaultAudioCodec
	}
	if req.Font != nil && !req.Font.Empty() {
		font := *req.Font
		plan.Font = &font
	}

	last := "0:v"
	images := 0
	for i, o := range req.Overlays {
		if err := o.Validate(); err != nil {
			return nil, err
		}

		out := "v" + strconv.Itoa(i)
		stage := Stage{OverlayID: o.ID, Kind: o.Kind}
		x, y := m.point(o.Position)
		enable := ffmpeg.Between(seconds(o.StartTime), seconds(o.EndTime))

		switch o.Kind {
		case overlays.KindImage:
			images++
			input := Input{
				Kind:   InputImage,
				Name:   fmt.Sprintf("overlay_%d%s", images-1, imageExt(o.Image.Ref)),
				Source: Source{Ref: o.Image.Ref},
			}
			plan.Inputs = append(plan.Inputs, input)

			scaled := "scaled" + strconv.Itoa(i)
			w, h := imageSize(o)
			stage.Chains = []ffmpeg.Chain{
				{
					Inputs:  []string{strconv.Itoa(images) + ":v"},
					Filters: ffmpeg.NewFilterBuilder().Scale(m.length(w), m.length(h)).Build(),
					Output:  scaled,
				},
				{
					Inputs:  []string{last, scaled},
					Filters: ffmpeg.NewFilterBuilder().Overlay(pixels(x), pixels(y), enable).Build(),
					Output:  out,
				},
			}

		case overlays.KindText:
			opts := ffmpeg.DrawTextOptions{
				Text:     o.Text.Text,
				FontSize: number(m.font(o.Text.FontSize)),
				Color:    color(o.Text.Color),
				X:        pixels(x),
				Y:        pixels(y),
				Enable:   enable,
			}
			if plan.Font != nil {
				opts.FontFile = FontName
			}
			stage.Chains = []ffmpeg.Chain{{
				Inputs:  []string{last},
				Filters: ffmpeg.NewFilterBuilder().DrawText(opts).Build(),
				Output:  out,
			}}
		}

		plan.Stages = append(plan.Stages, stage)
		last = out
	}

	if req.Audio != nil && !req.Audio.Empty() {
		plan.Inputs = append(plan.Inputs, Input{
			Kind:   InputAudio,
			Name:   "audio" + audioExt(req.Audio.Ref),
			Source: *req.Audio,
		})
		plan.AudioMap = strconv.Itoa(len(plan.Inputs)-1) + ":a"
	} else {
		// the source may be silent
		plan.AudioMap = "0:a?"
	}

	if err := plan.Graph().Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent filter graph: %w", err)
	}
	return plan, nil
}

// mapping converts canvas coordinates into video pixels. The video is
// assumed fitted (contain) and centered inside the canvas.
type mapping struct {
	scale   float64
	offsetX float64
	offsetY float64
	canvasW float64
	canvasH float64
	videoW  float64
	videoH  float64
}

func newMapping(req Request) (mapping, error) {
	vw, vh := float64(req.VideoWidth), float64(req.VideoHeight)
	cw, ch := req.CanvasWidth, req.CanvasHeight
	if cw <= 0 || ch <= 0 {
		cw, ch = vw, vh
	}

	if req.AspectPolicy == AspectStrict {
		if math.Abs(cw/ch-vw/vh)/(vw/vh) > aspectTolerance {
			return mapping{}, fmt.Errorf("%w: canvas %sx%s, video %dx%d",
				ErrAspectMismatch, number(cw), number(ch), req.VideoWidth, req.VideoHeight)
		}
	}

	s := math.Min(cw/vw, ch/vh)
	return mapping{
		scale:   s,
		offsetX: (cw - vw*s) / 2,
		offsetY: (ch - vh*s) / 2,
		canvasW: cw,
		canvasH: ch,
		videoW:  vw,
		videoH:  vh,
	}, nil
}

func (m mapping) point(p overlays.Position) (float64, float64) {
	x := (p.X*m.canvasW - m.offsetX) / m.scale
	y := (p.Y*m.canvasH - m.offsetY) / m.scale
	return util.Clamp(x, 0, m.videoW), util.Clamp(y, 0, m.videoH)
}

// length maps a canvas length; non-positive lengths keep the aspect ratio
func (m mapping) length(v float64) int {
	if v <= 0 {
		return -1
	}
	return int(math.Max(1, math.Round(v/m.scale)))
}

func (m mapping) font(size float64) float64 {
	return size / m.scale
}

func imageSize(o overlays.Overlay) (float64, float64) {
	w, h := o.Size.Width, o.Size.Height
	if w <= 0 {
		w = o.Image.Width
	}
	if h <= 0 {
		h = o.Image.Height
	}
	return w, h
}

func seconds(v float64) string {
	return util.FormatNumber(math.Round(v*1000) / 1000)
}

func number(v float64) string {
	return util.FormatNumber(math.Round(v*100) / 100)
}

func pixels(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

// color expands #rgb shorthand, which ffmpeg does not parse
func color(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return "white"
	}
	if len(c) == 4 && c[0] == '#' {
		return "#" + strings.Repeat(c[1:2], 2) + strings.Repeat(c[2:3], 2) + strings.Repeat(c[3:4], 2)
	}
	return c
}

func imageExt(ref string) string {
	return extOr(ref, ".png", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp")
}

func audioExt(ref string) string {
	return extOr(ref, ".mp3", ".mp3", ".wav", ".aac", ".m4a", ".ogg", ".flac", ".opus")
}

// extOr returns the lowercase extension of ref when it is one of allowed,
// otherwise fallback. data: URLs and qr: refs never carry a usable
// extension.
func extOr(ref, fallback string, allowed ...string) string {
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "qr:") {
		return fallback
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ext := strings.ToLower(path.Ext(ref))
	for _, a := range allowed {
		if ext == a {
			return ext
		}
	}
	return fallback
}
