package overlay

import (
	"bytes"
	"fmt"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// placedGlyph is a shaped glyph with its pen position relative to the
// start of the line, in pixels.
type placedGlyph struct {
	gid  sfnt.GlyphIndex
	x, y float32
}

// shaper runs HarfBuzz shaping over single-line, left-to-right strings.
// Glyph IDs index the same font the atlas rasterizes from.
type shaper struct {
	face *font.Face
	hb   shaping.HarfbuzzShaper
	lang language.Language
}

func newShaper(ttf []byte) (*shaper, error) {
	face, err := font.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("overlay: parse font: %w", err)
	}
	return &shaper{face: face, lang: language.NewLanguage("en")}, nil
}

func (s *shaper) shape(text string, size float32) []placedGlyph {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	out := s.hb.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      s.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    scriptOf(runes),
		Language:  s.lang,
	})

	glyphs := make([]placedGlyph, 0, len(out.Glyphs))
	var pen fixed.Int26_6
	for _, g := range out.Glyphs {
		glyphs = append(glyphs, placedGlyph{
			gid: sfnt.GlyphIndex(g.GlyphID),
			x:   fixedToFloat(pen + g.XOffset),
			y:   -fixedToFloat(g.YOffset),
		})
		pen += g.Advance
	}
	return glyphs
}

func scriptOf(runes []rune) language.Script {
	for _, r := range runes {
		if r != ' ' && r != '\t' {
			return language.LookupScript(r)
		}
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 { return float32(v) / 64 }
