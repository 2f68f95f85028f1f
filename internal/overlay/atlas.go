package overlay

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// DefaultAtlasSize is the edge length of the square glyph atlas.
const DefaultAtlasSize = 512

// glyphPadding keeps bilinear samples of neighbouring glyphs apart.
const glyphPadding = 1

var errAtlasFull = errors.New("overlay: glyph atlas full")

type glyphKey struct {
	gid  sfnt.GlyphIndex
	size int // pixels per em
}

// glyph is a rasterized glyph. Offset is the top left of the bitmap
// relative to the pen position on the baseline, y down.
type glyph struct {
	rect   image.Rectangle // atlas pixels, empty for blank glyphs
	offset image.Point
}

// atlas packs rasterized glyphs into one coverage image with a shelf
// allocator. It only grows until it is full; then it is cleared and the
// glyphs of the current frame are rasterized again.
type atlas struct {
	font  *sfnt.Font
	buf   sfnt.Buffer
	image *image.Alpha

	glyphs map[glyphKey]glyph
	x, y   int
	row    int
	dirty  bool
	resets int
}

func newAtlas(f *sfnt.Font, size int) *atlas {
	return &atlas{
		font:   f,
		image:  image.NewAlpha(image.Rect(0, 0, size, size)),
		glyphs: make(map[glyphKey]glyph),
	}
}

func (a *atlas) size() int { return a.image.Rect.Dx() }

// reset drops every glyph.
func (a *atlas) reset() {
	clear(a.image.Pix)
	clear(a.glyphs)
	a.x, a.y, a.row = 0, 0, 0
	a.dirty = true
	a.resets++
}

// lookup returns the glyph for key, rasterizing it on first use.
func (a *atlas) lookup(key glyphKey) (glyph, error) {
	if g, ok := a.glyphs[key]; ok {
		return g, nil
	}
	g, err := a.rasterize(key)
	if err != nil {
		return glyph{}, err
	}
	a.glyphs[key] = g
	return g, nil
}

func (a *atlas) rasterize(key glyphKey) (glyph, error) {
	segs, err := a.font.LoadGlyph(&a.buf, key.gid, fixed.I(key.size), nil)
	if err != nil {
		return glyph{}, fmt.Errorf("overlay: load glyph %d: %w", key.gid, err)
	}
	if len(segs) == 0 {
		return glyph{}, nil
	}

	b := segs.Bounds()
	minX, minY := b.Min.X.Floor(), b.Min.Y.Floor()
	w, h := b.Max.X.Ceil()-minX, b.Max.Y.Ceil()-minY
	if w <= 0 || h <= 0 {
		return glyph{}, nil
	}

	rect, err := a.allocate(w, h)
	if err != nil {
		return glyph{}, err
	}

	ox, oy := float32(-minX), float32(-minY)
	pt := func(p fixed.Point26_6) (float32, float32) {
		return float32(p.X)/64 + ox, float32(p.Y)/64 + oy
	}
	r := vector.NewRasterizer(w, h)
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			r.ClosePath()
			r.MoveTo(pt(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			r.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			r.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			dx, dy := pt(s.Args[2])
			r.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	r.ClosePath()
	r.Draw(a.image, rect, image.Opaque, image.Point{})
	a.dirty = true

	return glyph{rect: rect, offset: image.Pt(minX, minY)}, nil
}

// allocate reserves a w×h cell on the current shelf or a new one.
func (a *atlas) allocate(w, h int) (image.Rectangle, error) {
	size := a.size()
	pw, ph := w+glyphPadding, h+glyphPadding
	if pw > size || ph > size {
		return image.Rectangle{}, fmt.Errorf("%w: glyph %dx%d", errAtlasFull, w, h)
	}
	if a.x+pw > size {
		a.x = 0
		a.y += a.row
		a.row = 0
	}
	if a.y+ph > size {
		return image.Rectangle{}, errAtlasFull
	}
	r := image.Rect(a.x, a.y, a.x+w, a.y+h)
	a.x += pw
	a.row = max(a.row, ph)
	return r, nil
}

// uv maps an atlas rectangle to normalized texture coordinates.
func (a *atlas) uv(r image.Rectangle) (u0, v0, u1, v1 float32) {
	s := float32(a.size())
	return float32(r.Min.X) / s, float32(r.Min.Y) / s, float32(r.Max.X) / s, float32(r.Max.Y) / s
}

func pixelSize(size float32) int {
	return max(1, int(math.Round(float64(size))))
}
