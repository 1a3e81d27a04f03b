package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/keagan/cutline/pkg/util"
	"github.com/rs/zerolog"
)

// ErrNotLoaded is returned by Engine calls made before Load
var ErrNotLoaded = errors.New("engine not loaded")

// Engine exposes the executor as a file-oriented command engine: inputs
// are written into a private workspace, a command runs against it and
// outputs are read back. One Engine serves one job.
type Engine struct {
	logger   zerolog.Logger
	exec     *Executor
	tempRoot string

	mu         sync.Mutex
	dir        string
	onProgress func(ratio float64)
}

// NewEngine creates an engine whose workspaces live under tempRoot
// (os.TempDir when empty)
func NewEngine(logger zerolog.Logger, exec *Executor, tempRoot string) *Engine {
	return &Engine{
		logger:   logger.With().Str("component", "engine").Logger(),
		exec:     exec,
		tempRoot: tempRoot,
	}
}

// Load prepares the workspace. Loading twice is a no-op.
func (en *Engine) Load(ctx context.Context) error {
	en.mu.Lock()
	defer en.mu.Unlock()
	if en.dir != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	root := en.tempRoot
	if root != "" {
		if err := util.EnsureDir(root); err != nil {
			return fmt.Errorf("failed to create temp root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "cutline-job-")
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	en.dir = dir
	en.logger.Debug().Str("dir", dir).Msg("workspace ready")
	return nil
}

// Dir returns the workspace directory, empty before Load
func (en *Engine) Dir() string {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.dir
}

// WriteFile stores data under name in the workspace
func (en *Engine) WriteFile(name string, data []byte) error {
	path, err := en.path(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the content of name from the workspace
func (en *Engine) ReadFile(name string) ([]byte, error) {
	path, err := en.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// OnProgress registers the callback receiving completion ratios in [0,1]
func (en *Engine) OnProgress(fn func(ratio float64)) {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.onProgress = fn
}

// Exec runs ffmpeg in the workspace. The first input is probed so progress
// can be reported as a ratio of its duration.
func (en *Engine) Exec(ctx context.Context, args []string) error {
	dir := en.Dir()
	if dir == "" {
		return ErrNotLoaded
	}

	en.mu.Lock()
	onProgress := en.onProgress
	en.mu.Unlock()

	opts := RunOptions{
		Args: args,
		Dir:  dir,
		LogHandler: func(line string) {
			en.logger.Debug().Str("ffmpeg", line).Msg("engine output")
		},
	}
	if first := firstInput(args); first != "" {
		if info, err := en.exec.ProbeVideo(ctx, filepath.Join(dir, first)); err == nil {
			opts.Duration = info.Duration
		} else {
			en.logger.Debug().Err(err).Str("input", first).Msg("probe failed, progress limited to completion")
		}
	}
	if onProgress != nil {
		opts.ProgressHandler = func(p *Progress) {
			onProgress(p.Percentage / 100)
		}
	}

	return en.exec.Run(ctx, opts)
}

// Close removes the workspace
func (en *Engine) Close() error {
	en.mu.Lock()
	dir := en.dir
	en.dir = ""
	en.mu.Unlock()
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func (en *Engine) path(name string) (string, error) {
	dir := en.Dir()
	if dir == "" {
		return "", ErrNotLoaded
	}
	base := util.SafeName(name)
	if base == "" || base != name {
		return "", fmt.Errorf("invalid workspace file name %q", name)
	}
	return filepath.Join(dir, base), nil
}

func firstInput(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			return args[i+1]
		}
	}
	return ""
}
