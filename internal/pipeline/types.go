package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keagan/cutline/internal/media"
	"github.com/keagan/cutline/internal/overlays"
	"github.com/keagan/cutline/internal/timeline"
	"gopkg.in/yaml.v3"
)

// ErrInvalidProject wraps every project validation failure
var ErrInvalidProject = errors.New("invalid project")

// Project is an editing session on disk: one source video, the canvas the
// overlays were positioned on and the overlays themselves.
type Project struct {
	Name     string             `json:"name" yaml:"name"`
	Video    string             `json:"video" yaml:"video"`
	Audio    string             `json:"audio,omitempty" yaml:"audio,omitempty"`
	Canvas   Canvas             `json:"canvas" yaml:"canvas"`
	Overlays []overlays.Overlay `json:"overlays" yaml:"overlays"`
	// Document is the host design, only carried by JSON projects
	Document *timeline.Document `json:"document,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Canvas is the editing surface size in pixels
type Canvas struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ExportOptions configures an export
type ExportOptions struct {
	OutputPath string
	// Progress receives 0..100 while the engine runs
	Progress func(pct int)
}

// Validate checks the project before any media is touched
func (p *Project) Validate() error {
	if p.Video == "" {
		return fmt.Errorf("%w: video is required", ErrInvalidProject)
	}
	if p.Canvas.Width < 0 || p.Canvas.Height < 0 {
		return fmt.Errorf("%w: canvas size cannot be negative", ErrInvalidProject)
	}
	for _, o := range p.Overlays {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProject, err)
		}
	}
	return nil
}

// Store loads the overlays into a store, assigning missing ids and
// collapsing duplicates
func (p *Project) Store() *overlays.Store {
	s := overlays.NewStore()
	for _, o := range p.Overlays {
		s.Add(o)
	}
	return s
}

// LoadProject reads a JSON or YAML project file. Relative media paths are
// resolved against the project directory.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	project, err := ParseProject(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	project.Video = resolveRef(dir, project.Video)
	project.Audio = resolveRef(dir, project.Audio)
	for i, o := range project.Overlays {
		if o.Image != nil {
			img := *o.Image
			img.Ref = resolveRef(dir, img.Ref)
			project.Overlays[i].Image = &img
		}
	}
	return project, nil
}

// ParseProject decodes project data. ext selects the format; anything but
// .yaml/.yml is treated as JSON.
func ParseProject(data []byte, ext string) (*Project, error) {
	project := &Project{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, project); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
		}
	default:
		if err := json.Unmarshal(data, project); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
		}
	}

	if err := project.Validate(); err != nil {
		return nil, err
	}
	return project, nil
}

// Save writes the project as JSON or YAML depending on the extension
func (p *Project) Save(path string) error {
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func resolveRef(dir, ref string) string {
	if ref == "" || filepath.IsAbs(ref) || strings.Contains(ref, "://") || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, media.QRPrefix) {
		return ref
	}
	return filepath.Join(dir, ref)
}
