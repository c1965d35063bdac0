package docmodel

import (
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docrevise/internal/patch"
)

// Paragraph is a body or table-cell paragraph.
type Paragraph struct {
	p *docx.Paragraph
}

// Runs returns the paragraph's text runs in order, including runs nested
// in hyperlinks.
func (p *Paragraph) Runs() []*Run {
	var out []*Run
	for _, child := range p.p.Children {
		switch c := child.(type) {
		case *docx.Run:
			out = append(out, &Run{r: c})
		case *docx.Hyperlink:
			out = append(out, &Run{r: &c.Run})
		}
	}
	return out
}

// PatchRuns returns the runs as patch.Run values.
func (p *Paragraph) PatchRuns() []patch.Run {
	runs := p.Runs()
	out := make([]patch.Run, len(runs))
	for i, r := range runs {
		out[i] = r
	}
	return out
}

// Text concatenates the text of all runs.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs() {
		b.WriteString(r.Text())
	}
	return b.String()
}

// StyleID returns the paragraph style identifier, if any.
func (p *Paragraph) StyleID() string {
	if p.p.Properties == nil || p.p.Properties.Style == nil {
		return ""
	}
	return p.p.Properties.Style.Val
}

// SetStyleID sets the paragraph style, such as "Heading1".
func (p *Paragraph) SetStyleID(id string) *Paragraph {
	p.p.Style(id)
	return p
}

// Center sets centered justification.
func (p *Paragraph) Center() *Paragraph {
	p.p.Justification("center")
	return p
}

// AddRun appends a run with the given text and style.
func (p *Paragraph) AddRun(text string, st Style) *Run {
	r := &Run{r: p.p.AddText("")}
	r.SetText(text)
	r.SetStyle(st)
	return r
}

// Segment is a piece of text with an optional style override.
type Segment struct {
	Text  string
	Style *Style
}

// Rewrite replaces the paragraph's runs with one run per segment. Every new
// run starts from the formatting of the paragraph's first run; a segment's
// Style is layered on top.
func (p *Paragraph) Rewrite(segs []Segment) {
	var base *docx.RunProperties
	if runs := p.Runs(); len(runs) > 0 && runs[0].r.RunProperties != nil {
		base = runs[0].r.RunProperties
	}
	kept := p.p.Children[:0]
	for _, child := range p.p.Children {
		switch child.(type) {
		case *docx.Run, *docx.Hyperlink:
		default:
			kept = append(kept, child)
		}
	}
	p.p.Children = kept
	for _, seg := range segs {
		if seg.Text == "" {
			continue
		}
		r := &Run{r: p.p.AddText("")}
		if base != nil {
			props := *base
			r.r.RunProperties = &props
		}
		r.SetText(seg.Text)
		if seg.Style != nil {
			r.Overlay(*seg.Style)
		}
	}
}

// Run is a span of text with one set of formatting attributes.
type Run struct {
	r *docx.Run
}

// Text returns the run's visible text. Tabs and line breaks become \t and \n.
func (r *Run) Text() string {
	var b strings.Builder
	for _, child := range r.r.Children {
		switch c := child.(type) {
		case *docx.Text:
			b.WriteString(c.Text)
		case *docx.Tab:
			b.WriteByte('\t')
		case *docx.BarterRabbet:
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// SetText replaces the run's text children, keeping any non-text children
// and the run properties.
func (r *Run) SetText(s string) {
	var kept []interface{}
	for _, child := range r.r.Children {
		switch child.(type) {
		case *docx.Text, *docx.Tab, *docx.BarterRabbet:
		default:
			kept = append(kept, child)
		}
	}
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			kept = append(kept, &docx.BarterRabbet{})
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				kept = append(kept, &docx.Tab{})
			}
			if part != "" {
				kept = append(kept, &docx.Text{XMLSpace: "preserve", Text: part})
			}
		}
	}
	r.r.Children = kept
}

// Style is the subset of run formatting the tool reads and writes.
type Style struct {
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	// Color is a hex RGB value such as "FF0000".
	Color string
	// Size is in half-points; 0 leaves the size unset.
	Size int
}

// Style reads the run's formatting.
func (r *Run) Style() Style {
	var st Style
	rp := r.r.RunProperties
	if rp == nil {
		return st
	}
	st.Bold = rp.Bold != nil
	st.Italic = rp.Italic != nil
	st.Underline = rp.Underline != nil && rp.Underline.Val != "" && rp.Underline.Val != "none"
	st.Strike = rp.Strike != nil && rp.Strike.Val != "false" && rp.Strike.Val != "0"
	if rp.Color != nil {
		st.Color = rp.Color.Val
	}
	if rp.Size != nil {
		st.Size, _ = strconv.Atoi(rp.Size.Val)
	}
	return st
}

// SetStyle writes every attribute of st onto the run, clearing those unset.
func (r *Run) SetStyle(st Style) {
	if r.r.RunProperties == nil {
		r.r.RunProperties = &docx.RunProperties{}
	}
	rp := r.r.RunProperties
	rp.Bold, rp.Italic, rp.Underline, rp.Strike, rp.Color, rp.Size = nil, nil, nil, nil, nil, nil
	r.Overlay(st)
}

// Overlay sets the attributes enabled in st and leaves the rest alone.
func (r *Run) Overlay(st Style) {
	if r.r.RunProperties == nil {
		r.r.RunProperties = &docx.RunProperties{}
	}
	if st.Bold {
		r.r.Bold()
	}
	if st.Italic {
		r.r.Italic()
	}
	if st.Underline {
		r.r.Underline("single")
	}
	if st.Strike {
		r.r.Strike(true)
	}
	if st.Color != "" {
		r.r.Color(st.Color)
	}
	if st.Size > 0 {
		r.r.Size(strconv.Itoa(st.Size))
	}
}
