package caption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAnchor(t *testing.T) {
	tests := []struct {
		token string
		v     Vertical
		h     Horizontal
	}{
		{"bottom_left", VerticalBottom, HorizontalLeft},
		{"bottom_center", VerticalBottom, HorizontalCenter},
		{"bottom_right", VerticalBottom, HorizontalRight},
		{"middle_left", VerticalCenter, HorizontalLeft},
		{"middle_center", VerticalCenter, HorizontalCenter},
		{"middle_right", VerticalCenter, HorizontalRight},
		{"top_left", VerticalTop, HorizontalLeft},
		{"top_center", VerticalTop, HorizontalCenter},
		{"top_right", VerticalTop, HorizontalRight},
		{"", VerticalCenter, HorizontalCenter},
		{"somewhere", VerticalCenter, HorizontalCenter},
		// precedence: bottom before top, left before right
		{"top_bottom", VerticalBottom, HorizontalCenter},
		{"right_left", VerticalCenter, HorizontalLeft},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			v, h := ResolveAnchor(tt.token)
			assert.Equal(t, tt.v, v)
			assert.Equal(t, tt.h, h)
		})
	}
}
