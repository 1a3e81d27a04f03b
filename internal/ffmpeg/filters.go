package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct a single ffmpeg filter chain
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter. A negative side (-1, -2) keeps the aspect
// ratio; a zero side drops the filter.
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width == 0 || height == 0 {
		// keep chaining without the filter
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// Overlay composites the second chain input over the first at x,y.
// An empty enable expression keeps the overlay on for the whole stream.
func (fb *FilterBuilder) Overlay(x, y, enable string) *FilterBuilder {
	f := fmt.Sprintf("overlay=%s:%s", x, y)
	if enable != "" {
		f += ":enable='" + enable + "'"
	}
	fb.filters = append(fb.filters, f)
	return fb
}

// DrawTextOptions configures a drawtext filter
type DrawTextOptions struct {
	FontFile string
	Text     string
	FontSize string
	Color    string
	X        string
	Y        string
	Enable   string
}

// DrawText adds a drawtext filter. Text is escaped here; callers pass it raw.
func (fb *FilterBuilder) DrawText(opts DrawTextOptions) *FilterBuilder {
	parts := make([]string, 0, 7)
	if opts.FontFile != "" {
		parts = append(parts, "fontfile="+EscapeText(opts.FontFile))
	}
	parts = append(parts, "text='"+EscapeText(opts.Text)+"'")
	if opts.FontSize != "" {
		parts = append(parts, "fontsize="+opts.FontSize)
	}
	if opts.Color != "" {
		parts = append(parts, "fontcolor="+opts.Color)
	}
	if opts.X != "" {
		parts = append(parts, "x="+opts.X)
	}
	if opts.Y != "" {
		parts = append(parts, "y="+opts.Y)
	}
	if opts.Enable != "" {
		parts = append(parts, "enable='"+opts.Enable+"'")
	}
	fb.filters = append(fb.filters, "drawtext="+strings.Join(parts, ":"))
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// Between returns a time gate expression for the enable option
func Between(start, end string) string {
	return fmt.Sprintf("between(t,%s,%s)", start, end)
}

// EscapeText escapes backslashes, colons and single quotes for use inside
// a filter option value.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ":", `\:`)
	return strings.ReplaceAll(s, "'", `\'`)
}
