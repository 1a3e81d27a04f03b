package ffmpeg

import "time"

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath     string
	Duration     time.Duration
	Width        int
	Height       int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	FPS        float64
	Bitrate    string
	Time       string
	OutTime    time.Duration
	Speed      string
	Percentage float64
	Done       bool
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called once per progress block emitted by ffmpeg.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args []string
	// Dir is the working directory relative input names resolve against
	Dir string
	// Duration of the primary input, used to compute Percentage
	Duration        time.Duration
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
)
