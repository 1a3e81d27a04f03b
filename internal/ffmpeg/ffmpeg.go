package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/cutline/pkg/util"
)

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, threads int) (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}, nil
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return errors.New("no arguments provided")
	}

	// threads must precede the inputs
	baseArgs := []string{"-y", "-hide_banner", "-nostdin", "-nostats", "-loglevel", "info"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", strconv.Itoa(e.threads))
	}
	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Str("dir", opts.Dir).
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Dir = opts.Dir

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := newTail(8)
	logHandler := func(line string) {
		tail.add(line)
		if opts.LogHandler != nil {
			opts.LogHandler(line)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// stderr carries both progress blocks and log lines
	go func() {
		defer wg.Done()
		scanProgress(stderr, opts.Duration, opts.ProgressHandler, logHandler)
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, tail.String())
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// scanProgress parses "-progress" key=value blocks. Every other line is
// forwarded to logHandler. When duration is known the percentage is
// derived from out_time_us, or from out_time when the microsecond keys
// are missing.
func scanProgress(r io.Reader, duration time.Duration, progressHandler ProgressFunc, logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	p := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.ContainsAny(key, " \t") {
			if logHandler != nil {
				logHandler(line)
			}
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "frame":
			p.Frame, _ = strconv.Atoi(value)
		case "fps":
			p.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			p.Bitrate = value
		case "out_time_us", "out_time_ms":
			// both keys carry microseconds
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.OutTime = time.Duration(us) * time.Microsecond
			}
		case "out_time":
			p.Time = value
			if p.OutTime == 0 {
				if d, err := util.ParseTimestamp(value); err == nil && d > 0 {
					p.OutTime = d
				}
			}
		case "speed":
			p.Speed = value
		case "total_size", "dup_frames", "drop_frames":
		case "progress":
			p.Done = value == "end"
			if duration > 0 {
				p.Percentage = min(100, max(0, float64(p.OutTime)/float64(duration)*100))
			}
			if p.Done {
				p.Percentage = 100
			}
			if progressHandler != nil {
				progressHandler(p)
			}
			p = &Progress{}
		default:
			if strings.HasPrefix(key, "stream_") {
				continue
			}
			if logHandler != nil {
				logHandler(line)
			}
		}
	}
}

// tail keeps the last n log lines for error reports
type tail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, " | ")
}
