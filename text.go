package smol

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"

	"github.com/phanxgames/smol/handle"
)

// Glyph is one character of a bitmap font. Rect is in atlas pixels with a
// top-left origin; offsets are from the pen position, y down.
type Glyph struct {
	ID       rune
	Rect     Rect
	XOffset  float32
	YOffset  float32
	XAdvance float32
}

// FontData is a parsed bitmap font, independent of any Scene.
type FontData struct {
	Name       string
	Size       float32
	LineHeight float32
	Base       float32

	// atlas size declared by the font; used when the texture is missing
	TextureWidth  int
	TextureHeight int
	PageFile      string

	Glyphs   []Glyph
	Kernings map[[2]rune]int16
}

// Font is a bitmap font bound to an atlas texture.
type Font struct {
	Name       string
	Size       float32
	LineHeight float32
	Base       float32
	Texture    handle.Handle[Texture]

	texSize  Vec2
	glyphs   map[rune]Glyph
	kernings map[[2]rune]int16
	cache    *lru.Cache[layoutKey, *textLayout]
}

type layoutKey struct {
	text  string
	scale float32
}

// textLayout is the glyph placement of one string. Immutable once built;
// shared between the font cache and text nodes.
type textLayout struct {
	glyphs []glyphQuad
	bounds Vec2
}

// glyphQuad is a glyph's local rect, bottom-left origin, y up.
type glyphQuad struct {
	x, y, w, h float32
	rect       Rect
}

// Glyph returns the glyph for r.
func (f *Font) Glyph(r rune) (Glyph, bool) {
	g, ok := f.glyphs[r]
	return g, ok
}

// Kerning returns the extra advance between first and second.
func (f *Font) Kerning(first, second rune) float32 {
	return float32(f.kernings[[2]rune{first, second}])
}

// MeasureString returns the bounds text would occupy at the given line
// height scale.
func (f *Font) MeasureString(text string, lineHeightScale float32) Vec2 {
	return f.layout(text, lineHeightScale).bounds
}

func (f *Font) layout(text string, scale float32) *textLayout {
	if scale == 0 {
		scale = 1
	}
	key := layoutKey{text, scale}
	if f.cache != nil {
		if l, ok := f.cache.Get(key); ok {
			return l
		}
	}
	l := f.computeLayout(text, scale)
	if f.cache != nil {
		f.cache.Add(key, l)
	}
	return l
}

// computeLayout places glyphs with the top of the first line on the
// origin. Lines stack downward by LineHeight*scale.
func (f *Font) computeLayout(text string, scale float32) *textLayout {
	l := &textLayout{glyphs: make([]glyphQuad, 0, utf8.RuneCountInString(text))}
	var x, lineY float32
	var prev rune
	hasPrev := false

	for _, r := range text {
		if r == '\n' {
			x = 0
			lineY -= f.LineHeight * scale
			hasPrev = false
			continue
		}
		g, ok := f.glyphs[r]
		if !ok {
			hasPrev = false
			continue
		}
		var kern float32
		if hasPrev {
			kern = f.Kerning(prev, r)
		}
		w, h := g.Rect.Width, g.Rect.Height
		gx := x + g.XOffset + kern
		gy := lineY - g.YOffset - h
		if w > 0 && h > 0 {
			l.glyphs = append(l.glyphs, glyphQuad{x: gx, y: gy, w: w, h: h, rect: g.Rect})
			l.bounds.X = max(l.bounds.X, gx+w)
			l.bounds.Y = max(l.bounds.Y, -gy)
		}
		x += g.XAdvance + kern
		prev = r
		hasPrev = true
	}
	return l
}

// CreateFont binds data to an atlas texture. An invalid texture falls back
// to the checkerboard so the font still lays out.
func (s *Scene) CreateFont(data FontData, texture handle.Handle[Texture]) (handle.Handle[Font], error) {
	if data.LineHeight <= 0 {
		return handle.Invalid[Font](), fmt.Errorf("smol: font %q has no line height: %w", data.Name, ErrBadFont)
	}
	if len(data.Glyphs) == 0 {
		return handle.Invalid[Font](), fmt.Errorf("smol: font %q has no glyphs: %w", data.Name, ErrBadFont)
	}
	if !s.textures.Valid(texture) {
		s.log.Error("font references an invalid texture, using default",
			zap.String("font", data.Name), zap.Stringer("texture", texture))
		texture = s.DefaultTexture()
	}

	f := Font{
		Name:       data.Name,
		Size:       data.Size,
		LineHeight: data.LineHeight,
		Base:       data.Base,
		Texture:    texture,
		texSize:    Vec2{float32(data.TextureWidth), float32(data.TextureHeight)},
		glyphs:     make(map[rune]Glyph, len(data.Glyphs)),
		kernings:   make(map[[2]rune]int16, len(data.Kernings)),
	}
	for _, g := range data.Glyphs {
		f.glyphs[g.ID] = g
	}
	for k, v := range data.Kernings {
		f.kernings[k] = v
	}
	if size := s.cfg.Scene.LayoutCacheSize; size > 0 {
		cache, err := lru.New[layoutKey, *textLayout](size)
		if err != nil {
			return handle.Invalid[Font](), fmt.Errorf("smol: failed to create layout cache: %w", err)
		}
		f.cache = cache
	}
	return s.fonts.Add(f), nil
}

// LoadBMFont reads a text-format .fnt file and its first page image, which
// is resolved relative to the .fnt file.
func (s *Scene) LoadBMFont(path string, opts TextureOptions) (handle.Handle[Font], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return handle.Invalid[Font](), fmt.Errorf("smol: failed to read font %s: %w", path, err)
	}
	data, err := ParseBMFont(raw)
	if err != nil {
		return handle.Invalid[Font](), fmt.Errorf("smol: failed to parse font %s: %w", path, err)
	}
	tex := s.DefaultTexture()
	if data.PageFile != "" {
		tex = s.LoadTexture(filepath.Join(filepath.Dir(path), data.PageFile), opts)
	}
	return s.CreateFont(data, tex)
}

// CreateDefaultFont creates a font from the built-in 7x13 bitmap face.
func (s *Scene) CreateDefaultFont() handle.Handle[Font] {
	data, img := DefaultFontData()
	tex := s.CreateTexture(img, TextureOptions{Filter: FilterNearest})
	h, err := s.CreateFont(data, tex)
	if err != nil {
		panic("smol: built-in font: " + err.Error())
	}
	return h
}

// Font returns the font for h, or nil if h is stale.
func (s *Scene) Font(h handle.Handle[Font]) *Font { return s.fonts.Lookup(h) }

// DestroyFont invalidates h. The atlas texture is kept.
func (s *Scene) DestroyFont(h handle.Handle[Font]) bool { return s.fonts.Remove(h) }

func (s *Scene) fontTextureSize(f *Font) Vec2 {
	if t := s.textures.Lookup(f.Texture); t != nil && !t.Fallback {
		return t.Size()
	}
	if f.texSize.X > 0 && f.texSize.Y > 0 {
		return f.texSize
	}
	return Vec2{float32(s.cfg.Render.CheckerWidth), float32(s.cfg.Render.CheckerHeight)}
}

// DefaultFontData converts basicfont.Face7x13 into a font and its atlas.
// Glyph cells are stacked vertically below a reserved first row whose
// pixel (0, 0) is opaque white, for text backgrounds.
func DefaultFontData() (FontData, *image.NRGBA) {
	face := basicfont.Face7x13
	mask := face.Mask.Bounds()
	cellW, cellH := face.Width, face.Height

	atlas := image.NewNRGBA(image.Rect(0, 0, mask.Dx(), mask.Dy()+1))
	atlas.SetNRGBA(0, 0, color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF})
	for y := 0; y < mask.Dy(); y++ {
		for x := 0; x < mask.Dx(); x++ {
			_, _, _, a := face.Mask.At(mask.Min.X+x, mask.Min.Y+y).RGBA()
			if a != 0 {
				atlas.SetNRGBA(x, y+1, color.NRGBA{0xFF, 0xFF, 0xFF, uint8(a >> 8)})
			}
		}
	}

	data := FontData{
		Name:          "basicfont-7x13",
		Size:          float32(cellH),
		LineHeight:    float32(cellH),
		Base:          float32(face.Ascent),
		TextureWidth:  atlas.Rect.Dx(),
		TextureHeight: atlas.Rect.Dy(),
	}
	for _, rg := range face.Ranges {
		for r := rg.Low; r < rg.High; r++ {
			cell := rg.Offset + int(r-rg.Low)
			data.Glyphs = append(data.Glyphs, Glyph{
				ID:       r,
				Rect:     Rect{X: 0, Y: float32(1 + cell*cellH), Width: float32(cellW), Height: float32(cellH)},
				XAdvance: float32(face.Advance),
			})
		}
	}
	return data, atlas
}

// ParseBMFont parses BMFont text-format (.fnt) data. Only the first page
// file is recorded.
func ParseBMFont(fntData []byte) (FontData, error) {
	var f FontData
	scanner := bufio.NewScanner(bytes.NewReader(fntData))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tag, rest := splitTag(line)
		fields := parseFields(rest)

		switch tag {
		case "info":
			f.Name = fields["face"]
			f.Size = fieldFloat(fields, "size")
			if f.Size < 0 {
				f.Size = -f.Size
			}
		case "common":
			f.LineHeight = fieldFloat(fields, "lineHeight")
			f.Base = fieldFloat(fields, "base")
			f.TextureWidth = int(fieldFloat(fields, "scaleW"))
			f.TextureHeight = int(fieldFloat(fields, "scaleH"))
		case "page":
			if f.PageFile == "" {
				f.PageFile = fields["file"]
			}
		case "char":
			f.Glyphs = append(f.Glyphs, Glyph{
				ID: rune(fieldFloat(fields, "id")),
				Rect: Rect{
					X:      fieldFloat(fields, "x"),
					Y:      fieldFloat(fields, "y"),
					Width:  fieldFloat(fields, "width"),
					Height: fieldFloat(fields, "height"),
				},
				XOffset:  fieldFloat(fields, "xoffset"),
				YOffset:  fieldFloat(fields, "yoffset"),
				XAdvance: fieldFloat(fields, "xadvance"),
			})
		case "kerning":
			if f.Kernings == nil {
				f.Kernings = make(map[[2]rune]int16)
			}
			first := rune(fieldFloat(fields, "first"))
			second := rune(fieldFloat(fields, "second"))
			f.Kernings[[2]rune{first, second}] = int16(fieldFloat(fields, "amount"))
		}
	}

	if err := scanner.Err(); err != nil {
		return FontData{}, fmt.Errorf("smol: error reading .fnt data: %w", err)
	}
	if f.LineHeight == 0 {
		return FontData{}, fmt.Errorf("smol: .fnt data missing common lineHeight: %w", ErrBadFont)
	}
	if len(f.Glyphs) == 0 {
		return FontData{}, fmt.Errorf("smol: .fnt data has no char definitions: %w", ErrBadFont)
	}
	return f, nil
}

// splitTag splits a BMFont line into its tag and the rest of the line.
func splitTag(line string) (string, string) {
	idx := strings.IndexByte(line, ' ')
	if idx == -1 {
		return line, ""
	}
	return line[:idx], line[idx+1:]
}

// parseFields parses "key=value key=value ..." into a map. Quoted values may
// contain spaces.
func parseFields(s string) map[string]string {
	fields := make(map[string]string)
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t")
		eq := strings.IndexByte(s, '=')
		if eq == -1 {
			break
		}
		key := s[:eq]
		s = s[eq+1:]
		var val string
		if len(s) > 0 && s[0] == '"' {
			end := strings.IndexByte(s[1:], '"')
			if end == -1 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
		} else {
			end := strings.IndexAny(s, " \t")
			if end == -1 {
				val, s = s, ""
			} else {
				val, s = s[:end], s[end:]
			}
		}
		fields[key] = val
	}
	return fields
}

func fieldFloat(fields map[string]string, key string) float32 {
	v, err := strconv.ParseFloat(fields[key], 32)
	if err != nil {
		return 0
	}
	return float32(v)
}
