package smol

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/smol/handle"
)

// CreateRenderTexture creates an offscreen texture of the given size. Set
// it as a Camera.Target to render into it, and bind it in a material to
// sample the result. Cameras rendering into it need a lower Priority than
// the cameras drawing it.
func (s *Scene) CreateRenderTexture(width, height int, opts TextureOptions) handle.Handle[Texture] {
	return s.textures.Add(Texture{
		Width:   width,
		Height:  height,
		Options: opts,
		Target:  true,
		image:   ebiten.NewImage(width, height),
	})
}

// renderTarget returns the image a camera pass draws into: the camera's
// target texture, or screen when it has none or it is stale.
func (r *Renderer) renderTarget(s *Scene, screen *ebiten.Image, c *Camera) *ebiten.Image {
	if c.Target.IsNil() {
		return screen
	}
	t := s.Texture(c.Target)
	if t == nil || !t.Target || t.image == nil {
		r.log.Error("camera target is not a render texture, drawing to screen")
		return screen
	}
	return t.image
}
