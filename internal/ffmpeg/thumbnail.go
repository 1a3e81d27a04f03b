package ffmpeg

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/keagan/cutline/pkg/util"
)

// GenerateThumbnail writes a single JPEG frame taken at timestamp
func (e *Executor) GenerateThumbnail(ctx context.Context, input, output string, timestamp time.Duration, width int) error {
	if input == "" {
		return errors.New("input path is required")
	}
	if output == "" {
		return errors.New("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Dur("timestamp", timestamp).
		Msg("generating thumbnail")

	args := []string{
		"-ss", util.FormatDuration(timestamp),
		"-i", input,
		"-frames:v", "1",
	}
	if width > 0 {
		// keep aspect, even height for the jpeg encoder
		args = append(args, "-vf", NewFilterBuilder().Custom("scale="+strconv.Itoa(width)+":-2").Build())
	}
	args = append(args, "-q:v", "2", output)

	return e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("thumbnail generation")
		},
	})
}
