package canvas

import (
	"strings"
)

const (
	BlankTile    = "➕"
	OriginMarker = "🌠"
)

var digits = [10]string{"0️⃣", "1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

// GlyphFunc returns the glyph drawn for a cell owner. It must be stable:
// the same owner always renders the same way.
type GlyphFunc func(owner int64) string

// Render draws the canvas with the second axis running bottom to top, so
// the origin marker sits in the lower-left corner and (x, y) read like
// plot coordinates.
func (c *Canvas) Render(glyph GlyphFunc) string {
	var b strings.Builder
	for col := c.Cols - 1; col >= 0; col-- {
		b.WriteString(digits[col%10])
		for row := 0; row < c.Rows; row++ {
			owner := c.cells[row][col]
			if owner == Unclaimed {
				b.WriteString(BlankTile)
			} else {
				b.WriteString(glyph(owner))
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(OriginMarker)
	for row := 0; row < c.Rows; row++ {
		b.WriteString(digits[row%10])
	}
	return b.String()
}
