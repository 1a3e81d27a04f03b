// Package pipeline wires probing, fetching, compositing and the transcript
// service into the operations the CLI, server and editor call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keagan/cutline/internal/compositor"
	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/ffmpeg"
	"github.com/keagan/cutline/internal/media"
	"github.com/keagan/cutline/internal/monitor"
	"github.com/keagan/cutline/internal/overlays"
	"github.com/keagan/cutline/internal/timeline"
	"github.com/keagan/cutline/internal/transcript"
	"github.com/rs/zerolog"
)

// Media is the local ffmpeg surface the pipeline needs beyond compositing
type Media interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	GenerateThumbnail(ctx context.Context, input, output string, timestamp time.Duration, width int) error
}

// Pipeline orchestrates the editing workflow
type Pipeline struct {
	logger      zerolog.Logger
	config      *config.Config
	media       Media
	fetcher     compositor.Fetcher
	compositor  *compositor.Compositor
	transcripts *transcript.Client
}

// New creates a pipeline backed by the local ffmpeg install
func New(logger zerolog.Logger, appCfg *config.Config) (*Pipeline, error) {
	if appCfg == nil {
		appCfg = config.Default()
	}

	// Initialize ffmpeg executor
	ffmpegExec, err := ffmpeg.New(logger, appCfg.FFmpeg.Threads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	if err := os.MkdirAll(appCfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	fetcher := media.NewFetcher(logger, nil, appCfg.Transcript.Timeout)
	fetcher.BaseDir = appCfg.WorkDir

	assets := overlays.NewRegistry()
	for name, path := range appCfg.Overlays.Assets {
		assets.Register(name, path)
	}

	comp := compositor.New(logger,
		func() compositor.Engine { return ffmpeg.NewEngine(logger, ffmpegExec, appCfg.TempDir) },
		fetcher,
		compositor.WithAssets(assets),
		compositor.WithFetchConcurrency(appCfg.Compositor.FetchConcurrency),
	)

	watcher := monitor.NewWatcher(appCfg.Monitor.SlowCall, monitor.NewLogReporter(logger))
	client := transcript.NewClient(logger, appCfg.Transcript.APIURL, appCfg.Transcript.ExportURL, appCfg.Transcript.Timeout, watcher)

	return newPipeline(logger, appCfg, ffmpegExec, fetcher, comp, client), nil
}

func newPipeline(logger zerolog.Logger, appCfg *config.Config, m Media, fetcher compositor.Fetcher, comp *compositor.Compositor, client *transcript.Client) *Pipeline {
	return &Pipeline{
		logger:      logger.With().Str("component", "pipeline").Logger(),
		config:      appCfg,
		media:       m,
		fetcher:     fetcher,
		compositor:  comp,
		transcripts: client,
	}
}

// Compositor exposes the compositor for progress subscriptions
func (p *Pipeline) Compositor() *compositor.Compositor {
	return p.compositor
}

// Config returns the application configuration
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	return nil
}

// Request probes the project video and builds a compositing request
func (p *Pipeline) Request(ctx context.Context, project *Project) (compositor.Request, error) {
	if err := project.Validate(); err != nil {
		return compositor.Request{}, err
	}

	info, err := p.Probe(ctx, project.Video)
	if err != nil {
		return compositor.Request{}, err
	}

	p.logger.Info().
		Str("video", project.Video).
		Dur("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("video probed")

	req := compositor.Request{
		Video:        compositor.Source{Ref: project.Video},
		VideoWidth:   info.Width,
		VideoHeight:  info.Height,
		CanvasWidth:  project.Canvas.Width,
		CanvasHeight: project.Canvas.Height,
		Overlays:     project.Store().All(),
		AspectPolicy: compositor.AspectPolicy(p.config.Compositor.AspectPolicy),
		AudioCodec:   p.config.FFmpeg.AudioCodec,
		Preset:       p.config.FFmpeg.Preset,
	}
	if project.Audio != "" {
		req.Audio = &compositor.Source{Ref: project.Audio}
	}
	if p.config.FFmpeg.FontFile != "" {
		req.Font = &compositor.Source{Ref: p.config.FFmpeg.FontFile}
	}
	return req, nil
}

// Plan builds the compositing plan without running it
func (p *Pipeline) Plan(ctx context.Context, project *Project) (*compositor.Plan, error) {
	req, err := p.Request(ctx, project)
	if err != nil {
		return nil, err
	}
	return compositor.BuildPlan(req)
}

// Export composes the project and writes the result to opts.OutputPath
func (p *Pipeline) Export(ctx context.Context, project *Project, opts ExportOptions) (*compositor.Result, error) {
	if opts.OutputPath == "" {
		return nil, errors.New("output path cannot be empty")
	}

	p.logger.Info().
		Str("project", project.Name).
		Int("overlays", len(project.Overlays)).
		Str("output", opts.OutputPath).
		Msg("starting export")

	req, err := p.Request(ctx, project)
	if err != nil {
		return nil, err
	}

	if opts.Progress != nil {
		unsubscribe := p.compositor.Subscribe(func(s compositor.Status) {
			if s.Loading {
				opts.Progress(s.Progress)
			}
		})
		defer unsubscribe()
	}

	res, err := p.compositor.Compose(ctx, req)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := os.WriteFile(opts.OutputPath, res.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	p.logger.Info().
		Str("output", opts.OutputPath).
		Int("bytes", len(res.Data)).
		Dur("elapsed", res.Elapsed).
		Msg("export completed")
	return res, nil
}

// Preview renders one JPEG frame of video at the given offset
func (p *Pipeline) Preview(ctx context.Context, video string, at time.Duration, width int) ([]byte, error) {
	path, cleanup, err := p.localize(ctx, video)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := os.CreateTemp(p.config.TempDir, "cutline-preview-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create preview file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	if err := p.media.GenerateThumbnail(ctx, path, out.Name(), at, width); err != nil {
		return nil, err
	}
	return os.ReadFile(out.Name())
}

// Transcribe generates a transcript for the document's first video and
// places it as caption elements
func (p *Pipeline) Transcribe(ctx context.Context, doc *timeline.Document, lang string) ([]string, error) {
	if lang == "" {
		lang = p.config.Transcript.Language
	}

	video, ok := doc.FirstVideo()
	if !ok {
		return nil, compositor.ErrNoVideo
	}

	data, err := p.fetcher.Fetch(ctx, video.Src)
	if err != nil {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}

	res, err := p.transcripts.Generate(ctx, data, filename(video.Src), lang)
	if err != nil {
		return nil, err
	}
	return transcript.ApplyGenerated(doc, res, lang, p.config.Timeline.PixelsPerSecond)
}

// Translate places a translation of the document's recorded transcript
func (p *Pipeline) Translate(ctx context.Context, doc *timeline.Document, lang string) ([]string, error) {
	meta := doc.Transcript()
	if len(meta.Segments) == 0 {
		return nil, errors.New("document has no transcript to translate")
	}

	res, err := p.transcripts.Translate(ctx, meta.Segments, lang)
	if err != nil {
		return nil, err
	}
	return transcript.Place(doc, res.Segments, lang, p.config.Timeline.PixelsPerSecond)
}

// RemoteExport hands the document's first video and visible elements to
// the export service
func (p *Pipeline) RemoteExport(ctx context.Context, doc *timeline.Document) ([]byte, error) {
	video, ok := doc.FirstVideo()
	if !ok {
		return nil, compositor.ErrNoVideo
	}

	data, err := p.fetcher.Fetch(ctx, video.Src)
	if err != nil {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}

	var elements []timeline.Element
	for _, el := range doc.Elements() {
		if el.Visible {
			elements = append(elements, el)
		}
	}
	return p.transcripts.Export(ctx, data, elements)
}

// Probe reads the video's metadata. Refs ffprobe cannot open directly are
// fetched into a temp file first.
func (p *Pipeline) Probe(ctx context.Context, ref string) (*ffmpeg.VideoInfo, error) {
	path, cleanup, err := p.localize(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	info, err := p.media.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	return info, nil
}

// localize returns a path ffprobe can read. Local files and http(s) URLs
// pass through; anything else is fetched into a temp file.
func (p *Pipeline) localize(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, noop, nil
	}
	if !strings.HasPrefix(ref, "data:") {
		path := strings.TrimPrefix(ref, "file://")
		if !filepath.IsAbs(path) && p.config.WorkDir != "" {
			if _, err := os.Stat(path); err != nil {
				path = filepath.Join(p.config.WorkDir, path)
			}
		}
		return path, noop, nil
	}

	data, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", noop, err
	}
	f, err := os.CreateTemp(p.config.TempDir, "cutline-src-*")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", noop, fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func filename(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		return "video.mp4"
	}
	name := filepath.Base(strings.SplitN(ref, "?", 2)[0])
	if name == "." || name == "/" || name == "" {
		return "video.mp4"
	}
	return name
}
