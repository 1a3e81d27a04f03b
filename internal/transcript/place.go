package transcript

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/keagan/cutline/internal/timeline"
	"github.com/keagan/cutline/pkg/util"
)

// Caption layout
const (
	FontSize     = 30.0
	LineHeight   = 1.2
	BottomOffset = 10.0
	// charWidth approximates glyph width as a fraction of the font size
	charWidth = 0.6
)

// ElementID names the element holding a segment in a language
func ElementID(lang string, seg timeline.Segment) string {
	return fmt.Sprintf("transcript-%s-%d", lang, seg.ID)
}

// Clear removes every transcript element in lang and returns how many
// were removed
func Clear(doc *timeline.Document, lang string) int {
	var ids []string
	for _, el := range doc.Elements() {
		if el.Kind == timeline.KindTranscript && el.Lang == lang {
			ids = append(ids, el.ID)
		}
	}
	doc.DeleteElements(ids...)
	return len(ids)
}

// Place replaces the transcript in lang with one caption element per
// segment, full canvas width and anchored to the bottom edge. Element
// windows are set in timeline pixels at pixelsPerSecond.
func Place(doc *timeline.Document, segments []timeline.Segment, lang string, pixelsPerSecond float64) ([]string, error) {
	Clear(doc, lang)

	width, height := doc.Size()
	perLine := max(1, int(math.Floor(width/(FontSize*charWidth))))

	ids := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines := max(1, int(math.Ceil(float64(utf8.RuneCountInString(seg.Text))/float64(perLine))))
		textHeight := FontSize * LineHeight * float64(lines)

		el := timeline.Element{
			ID:        ElementID(lang, seg),
			Kind:      timeline.KindTranscript,
			Name:      "transcript",
			Text:      seg.Text,
			Lang:      lang,
			Duration:  (seg.End - seg.Start) * 1000,
			StartTime: seg.Start,
			EndTime:   seg.End,
			Visible:   true,
			Custom: timeline.Custom{
				StartAt: timeline.Float(util.PixelsFromDuration(seg.Start*1000, pixelsPerSecond)),
				EndAt:   timeline.Float(util.PixelsFromDuration(seg.End*1000, pixelsPerSecond)),
			},
			X:        0,
			Y:        height - textHeight - BottomOffset,
			Width:    width,
			Height:   textHeight,
			FontSize: FontSize,
		}
		if err := doc.AddElement("", el); err != nil {
			return ids, fmt.Errorf("failed to place segment %d: %w", seg.ID, err)
		}
		ids = append(ids, el.ID)
	}
	return ids, nil
}

// ApplyGenerated places a freshly generated transcript and records the
// run on the document so it can be translated later
func ApplyGenerated(doc *timeline.Document, res *GenerateResult, lang string, pixelsPerSecond float64) ([]string, error) {
	ids, err := Place(doc, res.Segments, lang, pixelsPerSecond)
	if err != nil {
		return ids, err
	}
	doc.SetTranscript(timeline.TranscriptMeta{Segments: res.Segments, ProcessID: res.ProcessID})
	return ids, nil
}
