package docmodel

import "github.com/dgallion1/docrevise/internal/textdiff"

// Styles used to mark differences between two versions of a text.
var (
	RemovedStyle = Style{Strike: true, Bold: true, Color: "FF0000"}
	AddedStyle   = Style{Underline: true, Bold: true, Color: "008000"}
)

// MarkSegments renders the difference between original and revised as
// segments: unchanged text plain, removed text struck through in red and
// added text underlined in green. A replacement shows the removed text
// before the added text.
func MarkSegments(original, revised string, g textdiff.Granularity) []Segment {
	script := textdiff.Diff(original, revised, g)
	segs := make([]Segment, 0, len(script.Opcodes)*2)
	removed, added := RemovedStyle, AddedStyle
	for _, op := range script.Opcodes {
		a, b := script.Spans(op)
		switch op.Op {
		case textdiff.Equal:
			segs = append(segs, Segment{Text: a})
		case textdiff.Replace:
			segs = append(segs, Segment{Text: a, Style: &removed}, Segment{Text: b, Style: &added})
		case textdiff.Delete:
			segs = append(segs, Segment{Text: a, Style: &removed})
		case textdiff.Insert:
			segs = append(segs, Segment{Text: b, Style: &added})
		}
	}
	return segs
}
