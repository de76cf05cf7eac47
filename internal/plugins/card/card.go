// Package card renders the simple text layouts the builtin content
// providers share: a solid background with centered lines of text.
package card

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

// lineHeight leaves a little air between Face7x13 lines.
const lineHeight = 18

// New returns a w by h canvas filled with bg.
func New(w, h int, bg color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return img
}

// Center draws lines vertically centered on img, each line horizontally
// centered, in fg.
func Center(img *image.NRGBA, lines []string, fg color.Color) {
	b := img.Bounds()
	total := len(lines) * lineHeight
	y := b.Min.Y + (b.Dy()-total)/2 + face.Ascent

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	for _, line := range lines {
		w := d.MeasureString(line).Ceil()
		d.Dot = fixed.P(b.Min.X+(b.Dx()-w)/2, y)
		d.DrawString(line)
		y += lineHeight
	}
}

// Wrap breaks s into lines of at most maxChars characters on word
// boundaries. Words longer than maxChars get a line of their own.
func Wrap(s string, maxChars int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= maxChars {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	return append(lines, line)
}
