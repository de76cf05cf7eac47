package quantize

import (
	"errors"
	"fmt"
	"image"
)

// ErrUnsupportedLayout is returned when an image matches neither the target
// geometry nor its transpose. The caller must supply or crop to one of the
// two accepted layouts.
var ErrUnsupportedLayout = errors.New("quantize: unsupported image layout")

// BitsPerPixel is the packed depth of every supported panel: one palette
// index per nibble, two pixels per byte.
const BitsPerPixel = 4

// Method selects how pixels are mapped onto palette entries.
type Method int

const (
	// MethodNearest picks the palette entry with the minimum Euclidean
	// distance in RGB space. This is the canonical mapping and the only one
	// valid for calibrated palettes.
	MethodNearest Method = iota
	// MethodLegacy reproduces the threshold heuristic shipped with early
	// uncalibrated panels. Kept byte-for-byte compatible; see legacyName.
	MethodLegacy
)

// Options control a quantization pass.
type Options struct {
	// Width and Height are the panel geometry in pixels.
	Width  int
	Height int
	// Rotation is applied to the source image before layout matching.
	// Must be 0, 90, 180 or 270.
	Rotation int
	// Palette is the resolved target palette.
	Palette Palette
	Method  Method
}

// Buffer is a packed frame in the panel's native bit layout: row-major
// 4-bit palette indices, the pixel at even x in the high nibble.
type Buffer struct {
	Width        int
	Height       int
	BitsPerPixel int
	Pix          []byte
}

// Quantize maps img onto the palette and packs it for the panel.
//
// The source must match the target geometry exactly, or be its transpose;
// a transposed image is remapped with newx = y, newy = height-x-1 rather
// than rejected. Anything else is ErrUnsupportedLayout.
func Quantize(img image.Image, o Options) (*Buffer, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrUnsupportedLayout, o.Width, o.Height)
	}
	if o.Palette.Len() == 0 || o.Palette.Len() > 1<<BitsPerPixel {
		return nil, fmt.Errorf("%w: palette size %d exceeds %d-bit depth", ErrUnsupportedLayout, o.Palette.Len(), BitsPerPixel)
	}

	src, err := rotate(img, o.Rotation)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	iw, ih := b.Dx(), b.Dy()

	buf := &Buffer{
		Width:        o.Width,
		Height:       o.Height,
		BitsPerPixel: BitsPerPixel,
		Pix:          make([]byte, (o.Width*o.Height*BitsPerPixel+7)/8),
	}

	switch {
	case iw == o.Width && ih == o.Height:
		for y := 0; y < ih; y++ {
			for x := 0; x < iw; x++ {
				idx := o.mapPixel(src, b.Min.X+x, b.Min.Y+y)
				buf.set(x, y, idx)
			}
		}
	case iw == o.Height && ih == o.Width:
		// Landscape/portrait mismatch: 90-degree-equivalent remap.
		for y := 0; y < ih; y++ {
			for x := 0; x < iw; x++ {
				idx := o.mapPixel(src, b.Min.X+x, b.Min.Y+y)
				buf.set(y, o.Height-x-1, idx)
			}
		}
	default:
		return nil, fmt.Errorf("%w: image %dx%d does not fit target %dx%d", ErrUnsupportedLayout, iw, ih, o.Width, o.Height)
	}

	return buf, nil
}

// mapPixel resolves one source pixel to a palette index.
func (o Options) mapPixel(src image.Image, x, y int) int {
	r16, g16, b16, _ := src.At(x, y).RGBA()
	r, g, b := uint8(r16>>8), uint8(g16>>8), uint8(b16>>8)
	if o.Method == MethodLegacy {
		if i := o.Palette.Index(legacyName(r, g, b)); i >= 0 {
			return i
		}
		// Panel lacks the heuristic's pick; black/white are always present.
		if luma(r, g, b) < 128 {
			return o.Palette.Index(Black)
		}
		return o.Palette.Index(White)
	}
	return o.Palette.Nearest(r, g, b)
}

// set stores a palette index at (x, y): byte address (x+y*width)/2, even x
// in the high nibble, odd x in the low nibble.
func (f *Buffer) set(x, y, idx int) {
	addr := (x + y*f.Width) / 2
	if x%2 == 0 {
		f.Pix[addr] = (f.Pix[addr] & 0x0F) | byte(idx)<<4
	} else {
		f.Pix[addr] = (f.Pix[addr] & 0xF0) | byte(idx)&0x0F
	}
}

// IndexAt reads back the palette index at (x, y).
func (f *Buffer) IndexAt(x, y int) int {
	v := f.Pix[(x+y*f.Width)/2]
	if x%2 == 0 {
		return int(v >> 4)
	}
	return int(v & 0x0F)
}

func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// legacyName is the threshold heuristic from uncalibrated first-generation
// panels, reproduced exactly for compatibility. Boundaries use strict
// comparisons: gray 127 is black, gray 128 is white.
func legacyName(r, g, b uint8) ColorName {
	gray := luma(r, g, b)
	switch {
	case gray < 32:
		return Black
	case gray > 224:
		return White
	case r > 200 && g > 200 && b < 100:
		return Yellow
	case r > 200 && g < 100 && b < 100:
		return Red
	case r < 100 && g < 100 && b > 200:
		return Blue
	case r < 100 && g > 200 && b < 100:
		return Green
	case r > 150 && g > 100 && b < 100:
		return Orange
	case gray < 128:
		return Black
	default:
		return White
	}
}

// rotate returns img turned clockwise by the given number of degrees.
// Rotation 0 returns img unchanged.
func rotate(img image.Image, degrees int) (image.Image, error) {
	switch degrees {
	case 0:
		return img, nil
	case 90, 180, 270:
	default:
		return nil, fmt.Errorf("%w: rotation %d", ErrUnsupportedLayout, degrees)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.NRGBA
	if degrees == 180 {
		out = image.NewNRGBA(image.Rect(0, 0, w, h))
	} else {
		out = image.NewNRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch degrees {
			case 90:
				out.Set(h-y-1, x, c)
			case 180:
				out.Set(w-x-1, h-y-1, c)
			case 270:
				out.Set(y, w-x-1, c)
			}
		}
	}
	return out, nil
}
