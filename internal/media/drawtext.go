package media

import (
	"strconv"
	"strings"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

// edgeMargin keeps anchored text off the frame border, in pixels.
const edgeMargin = 20

// DrawTextFilter builds an ffmpeg drawtext filter reading the caption from
// textFile. Text is drawn on a single line, so the style's TextAlign has no
// visible effect here.
func DrawTextFilter(style caption.Style, textFile string) string {
	opts := make([]string, 0, 10)
	if style.FontPath != "" {
		opts = append(opts, "fontfile="+escapeValue(style.FontPath))
	}
	opts = append(opts,
		"textfile="+escapeValue(textFile),
		// caption text is literal; "100%" or a backslash must not be expanded.
		"expansion=none",
		"fontsize="+strconv.Itoa(style.FontSize),
		"fontcolor="+escapeValue(style.FillColor),
	)
	if style.OutlineColor != "" && style.OutlineWidth > 0 {
		opts = append(opts,
			"borderw="+strconv.Itoa(style.OutlineWidth),
			"bordercolor="+escapeValue(style.OutlineColor),
		)
	}
	if style.BoxColor != "" {
		opts = append(opts,
			"box=1",
			"boxcolor="+escapeValue(style.BoxColor),
			"boxborderw=10",
		)
	}
	opts = append(opts,
		"x="+xExpr(style),
		"y="+yExpr(style),
	)
	return "drawtext=" + strings.Join(opts, ":")
}

func xExpr(style caption.Style) string {
	if style.X != nil {
		return strconv.Itoa(*style.X)
	}
	switch style.Horizontal {
	case caption.HorizontalLeft:
		return strconv.Itoa(edgeMargin)
	case caption.HorizontalRight:
		return "w-text_w-" + strconv.Itoa(edgeMargin)
	default:
		return "(w-text_w)/2"
	}
}

func yExpr(style caption.Style) string {
	if style.Y != nil {
		return strconv.Itoa(*style.Y)
	}
	switch style.Vertical {
	case caption.VerticalTop:
		return strconv.Itoa(edgeMargin)
	case caption.VerticalBottom:
		return "h-text_h-" + strconv.Itoa(edgeMargin)
	default:
		return "(h-text_h)/2"
	}
}

// escapeValue escapes a drawtext option value for both parsing passes a
// -vf argument goes through: the option parser splits on ':' and the
// filtergraph parser before it splits on ',', ';' and brackets. Both treat
// backslash and single quote as escapes.
func escapeValue(v string) string {
	return escapeChars(escapeChars(v, `\':`), `\'[],;`)
}

func escapeChars(v, special string) string {
	if !strings.ContainsAny(v, special) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 4)
	for _, r := range v {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
