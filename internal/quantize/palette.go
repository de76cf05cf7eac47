// Package quantize maps arbitrary RGB content onto the small set of colors
// an e-paper panel can physically render and packs the result into the
// panel's native bit layout.
package quantize

// ColorName identifies one entry of a device palette.
type ColorName string

// The named colors a supported panel can render. Black and white are present
// in every palette; the remaining pigments depend on the panel model.
const (
	Black  ColorName = "black"
	White  ColorName = "white"
	Yellow ColorName = "yellow"
	Red    ColorName = "red"
	Blue   ColorName = "blue"
	Green  ColorName = "green"
	Orange ColorName = "orange"
)

// RGB is a palette entry value.
type RGB struct {
	R, G, B uint8
}

// Palette is an ordered set of named reference colors. The order is
// significant twice over: nearest-distance ties resolve to the earlier
// entry, and an entry's position is the index packed into the output buffer.
type Palette struct {
	names  []ColorName
	colors map[ColorName]RGB
}

// NewPalette builds a palette from entries in declaration order.
// Later duplicates of a name overwrite the value but keep the original position.
func NewPalette(entries []PaletteEntry) Palette {
	p := Palette{colors: make(map[ColorName]RGB, len(entries))}
	for _, e := range entries {
		if _, ok := p.colors[e.Name]; !ok {
			p.names = append(p.names, e.Name)
		}
		p.colors[e.Name] = e.Value
	}
	return p
}

// PaletteEntry pairs a color name with its RGB value.
type PaletteEntry struct {
	Name  ColorName
	Value RGB
}

// Default returns the ideal seven-color palette used before any
// per-model calibration is applied.
func Default() Palette {
	return NewPalette([]PaletteEntry{
		{Black, RGB{0, 0, 0}},
		{White, RGB{255, 255, 255}},
		{Yellow, RGB{255, 255, 0}},
		{Red, RGB{255, 0, 0}},
		{Blue, RGB{0, 0, 255}},
		{Green, RGB{0, 255, 0}},
		{Orange, RGB{255, 128, 0}},
	})
}

// CalibrationProfile overrides palette entries with the measured pigment
// colors of a specific hardware model.
type CalibrationProfile struct {
	Name   string
	Colors map[ColorName]RGB
}

// calibrations are the built-in per-model profiles, keyed by profile name.
var calibrations = map[string]CalibrationProfile{
	"acep7": {
		Name: "acep7",
		Colors: map[ColorName]RGB{
			Black:  RGB{30, 30, 30},
			White:  RGB{220, 220, 220},
			Yellow: RGB{220, 200, 60},
			Red:    RGB{160, 32, 32},
			Blue:   RGB{40, 60, 140},
			Green:  RGB{60, 120, 70},
			Orange: RGB{200, 110, 50},
		},
	},
}

// CalibrationByName looks up a built-in calibration profile.
func CalibrationByName(name string) (CalibrationProfile, bool) {
	c, ok := calibrations[name]
	return c, ok
}

// Resolve layers a calibration profile and a per-session override on top of
// the palette. Each layer replaces only the color names it specifies; every
// other entry keeps the value from the layer below. Order of entries never
// changes.
func (p Palette) Resolve(calibration *CalibrationProfile, override map[ColorName]RGB) Palette {
	out := Palette{
		names:  append([]ColorName(nil), p.names...),
		colors: make(map[ColorName]RGB, len(p.colors)),
	}
	for name, v := range p.colors {
		out.colors[name] = v
	}
	if calibration != nil {
		for name, v := range calibration.Colors {
			if _, ok := out.colors[name]; ok {
				out.colors[name] = v
			}
		}
	}
	for name, v := range override {
		if _, ok := out.colors[name]; ok {
			out.colors[name] = v
		}
	}
	return out
}

// Len returns the number of palette entries.
func (p Palette) Len() int { return len(p.names) }

// At returns the RGB value of the entry at index i.
func (p Palette) At(i int) RGB { return p.colors[p.names[i]] }

// NameAt returns the color name of the entry at index i.
func (p Palette) NameAt(i int) ColorName { return p.names[i] }

// Index returns the position of a named color, or -1 if absent.
func (p Palette) Index(name ColorName) int {
	for i, n := range p.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Lookup returns the RGB value of a named color.
func (p Palette) Lookup(name ColorName) (RGB, bool) {
	v, ok := p.colors[name]
	return v, ok
}

// Nearest returns the index of the palette entry closest to (r,g,b) by
// Euclidean distance in RGB space. Ties resolve to the earlier entry.
func (p Palette) Nearest(r, g, b uint8) int {
	best := 0
	bestDist := -1
	for i, name := range p.names {
		c := p.colors[name]
		dr := int(r) - int(c.R)
		dg := int(g) - int(c.G)
		db := int(b) - int(c.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
