package caption

import "strings"

// ResolveAnchor maps a placement token such as "bottom_left" to an anchor.
// Matching is by substring: bottom, then top, then middle for the vertical
// axis; left, then right for the horizontal axis. Anything else is centered.
func ResolveAnchor(token string) (Vertical, Horizontal) {
	token = strings.ToLower(token)

	vertical := VerticalCenter
	switch {
	case strings.Contains(token, "bottom"):
		vertical = VerticalBottom
	case strings.Contains(token, "top"):
		vertical = VerticalTop
	case strings.Contains(token, "middle"):
		vertical = VerticalCenter
	}

	horizontal := HorizontalCenter
	switch {
	case strings.Contains(token, "left"):
		horizontal = HorizontalLeft
	case strings.Contains(token, "right"):
		horizontal = HorizontalRight
	}

	return vertical, horizontal
}
