package caption

// WordEntry is a single timestamped word from the upstream transcript.
// Times are seconds from the start of the source video.
type WordEntry struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ReplacementRule replaces a whole word when Find occurs in it,
// case-insensitively.
type ReplacementRule struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// Settings holds the caption options a request may set. Zero values mean
// "unset" and are filled by WithDefaults.
type Settings struct {
	LineColor       string `json:"line_color,omitempty"`
	WordColor       string `json:"word_color,omitempty"`
	OutlineColor    string `json:"outline_color,omitempty"`
	AllCaps         bool   `json:"all_caps,omitempty"`
	MaxWordsPerLine int    `json:"max_words_per_line,omitempty" validate:"omitempty,min=1"`
	X               *int   `json:"x,omitempty"`
	Y               *int   `json:"y,omitempty"`
	Position        string `json:"position,omitempty" validate:"omitempty,oneof=bottom_left bottom_center bottom_right middle_left middle_center middle_right top_left top_center top_right"`
	Alignment       string `json:"alignment,omitempty" validate:"omitempty,oneof=left center right"`
	FontFamily      string `json:"font_family,omitempty"`
	FontSize        int    `json:"font_size,omitempty" validate:"omitempty,min=1"`
}

const (
	DefaultWordColor       = "white"
	DefaultFontSize        = 24
	DefaultMaxWordsPerLine = 1
	DefaultAlignment       = "center"
	DefaultOutlineWidth    = 2

	// word-per-caption mode keeps the original lower-third placement,
	// batched lines sit mid-frame.
	DefaultWordPosition  = "bottom_center"
	DefaultBatchPosition = "middle_center"
)

// WithDefaults returns a copy of s with every unset option filled in.
func (s Settings) WithDefaults() Settings {
	if s.MaxWordsPerLine < 1 {
		s.MaxWordsPerLine = DefaultMaxWordsPerLine
	}
	if s.WordColor == "" {
		s.WordColor = DefaultWordColor
	}
	if s.FontSize <= 0 {
		s.FontSize = DefaultFontSize
	}
	if s.Alignment == "" {
		s.Alignment = DefaultAlignment
	}
	if s.Position == "" {
		if s.MaxWordsPerLine > 1 {
			s.Position = DefaultBatchPosition
		} else {
			s.Position = DefaultWordPosition
		}
	}
	return s
}

type Vertical string

const (
	VerticalTop    Vertical = "top"
	VerticalCenter Vertical = "center"
	VerticalBottom Vertical = "bottom"
)

type Horizontal string

const (
	HorizontalLeft   Horizontal = "left"
	HorizontalCenter Horizontal = "center"
	HorizontalRight  Horizontal = "right"
)

// Style is the fully resolved look of one caption segment.
type Style struct {
	FontPath     string     `json:"font_path"`
	FontSize     int        `json:"font_size"`
	FillColor    string     `json:"fill_color"`
	OutlineColor string     `json:"outline_color,omitempty"`
	OutlineWidth int        `json:"outline_width"`
	BoxColor     string     `json:"box_color,omitempty"`
	Vertical     Vertical   `json:"vertical_anchor"`
	Horizontal   Horizontal `json:"horizontal_anchor"`
	TextAlign    string     `json:"text_align"`
	// X and Y, when set, pin the text to absolute pixel coordinates.
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`
}

type SegmentKind string

const (
	KindGap     SegmentKind = "gap"
	KindCaption SegmentKind = "caption"
)

// Segment is one span of the output timeline: a passthrough gap or a
// captioned span. Text and Style are only set for captions.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	Text  string      `json:"text,omitempty"`
	Style *Style      `json:"style,omitempty"`
}

func Gap(start, end float64) Segment {
	return Segment{Kind: KindGap, Start: start, End: end}
}

func Caption(start, end float64, text string, style Style) Segment {
	return Segment{Kind: KindCaption, Start: start, End: end, Text: text, Style: &style}
}

func (s Segment) IsCaption() bool {
	return s.Kind == KindCaption
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}
