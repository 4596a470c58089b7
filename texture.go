package smol

import (
	"image"
	"image/color"
	_ "image/jpeg" // decoders for LoadTexture
	_ "image/png"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"go.uber.org/zap"

	"github.com/phanxgames/smol/handle"
)

// TextureFilter selects how a texture is sampled.
type TextureFilter uint8

const (
	FilterDefault TextureFilter = iota // linear if config render.linear_filter is set
	FilterNearest
	FilterLinear
)

func (f TextureFilter) ebitenFilter(linearDefault bool) ebiten.Filter {
	if f == FilterLinear || (f == FilterDefault && linearDefault) {
		return ebiten.FilterLinear
	}
	return ebiten.FilterNearest
}

// TextureWrap selects what sampling outside [0, 1] returns.
type TextureWrap uint8

const (
	WrapClamp TextureWrap = iota
	WrapRepeat
)

func (w TextureWrap) ebitenAddress() ebiten.Address {
	if w == WrapRepeat {
		return ebiten.AddressRepeat
	}
	return ebiten.AddressClampToZero
}

// TextureOptions configures sampling for a texture.
type TextureOptions struct {
	Filter TextureFilter
	Wrap   TextureWrap
}

// Texture is a GPU image owned by a Scene.
type Texture struct {
	Path    string
	Width   int
	Height  int
	Options TextureOptions

	// Fallback is set when the requested image could not be loaded and the
	// checkerboard was used instead.
	Fallback bool

	// Target is set for render textures cameras may draw into.
	Target bool

	image *ebiten.Image
}

// Image returns the backing ebiten image.
func (t *Texture) Image() *ebiten.Image { return t.image }

// Size returns the texture dimensions in pixels.
func (t *Texture) Size() Vec2 { return Vec2{float32(t.Width), float32(t.Height)} }

// CreateTexture uploads img and returns its handle.
func (s *Scene) CreateTexture(img image.Image, opts TextureOptions) handle.Handle[Texture] {
	b := img.Bounds()
	return s.textures.Add(Texture{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Options: opts,
		image:   ebiten.NewImageFromImage(img),
	})
}

// LoadTexture decodes the image file at path. If it cannot be read the
// error is logged and the texture is backed by a checkerboard, so the
// returned handle is always valid.
func (s *Scene) LoadTexture(path string, opts TextureOptions) handle.Handle[Texture] {
	img, _, err := ebitenutil.NewImageFromFile(path)
	if err != nil {
		s.log.Error("failed to load texture, using checkerboard",
			zap.String("path", path), zap.Error(err))
		h := s.CreateTexture(s.checkerImage(), opts)
		t := s.textures.Lookup(h)
		t.Path = path
		t.Fallback = true
		return h
	}
	b := img.Bounds()
	return s.textures.Add(Texture{
		Path:    path,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Options: opts,
		image:   img,
	})
}

// DefaultTexture returns the scene's shared checkerboard texture, creating it
// on first use. Batchers and materials without a texture sample it.
func (s *Scene) DefaultTexture() handle.Handle[Texture] {
	if !s.textures.Valid(s.defaultTexture) {
		s.defaultTexture = s.CreateTexture(s.checkerImage(), TextureOptions{})
		s.textures.Lookup(s.defaultTexture).Fallback = true
	}
	return s.defaultTexture
}

// Texture returns the texture for h, or nil if h is stale.
func (s *Scene) Texture(h handle.Handle[Texture]) *Texture {
	return s.textures.Lookup(h)
}

// DestroyTexture releases the texture's GPU memory and invalidates h.
func (s *Scene) DestroyTexture(h handle.Handle[Texture]) bool {
	if t := s.textures.Lookup(h); t != nil && t.image != nil {
		t.image.Deallocate()
	}
	return s.textures.Remove(h)
}

func (s *Scene) checkerImage() image.Image {
	r := s.cfg.Render
	return CheckerImage(r.CheckerWidth, r.CheckerHeight, r.CheckerCount)
}

// CheckerImage returns a grey checkerboard with count squares across its
// width.
func CheckerImage(width, height, count int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	size := width / count
	if size < 1 {
		size = 1
	}
	light := color.NRGBA{0xAA, 0xAA, 0xAA, 0xFF}
	dark := color.NRGBA{0x55, 0x55, 0x55, 0xFF}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/size+y/size)&1 == 0 {
				img.SetNRGBA(x, y, light)
			} else {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}
