package smol

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap/zapcore"
)

func TestRenderTargetSelection(t *testing.T) {
	s, logs := newObservedScene(zapcore.ErrorLevel)
	r := NewRenderer(NewTestContext(s.Logger()))
	screen := ebiten.NewImage(4, 4)

	rt := s.CreateRenderTexture(32, 16, TextureOptions{Filter: FilterNearest})
	tex := s.Texture(rt)
	if !tex.Target || tex.Width != 32 || tex.Height != 16 {
		t.Fatalf("render texture = %+v", tex)
	}

	c := OrthographicCamera(1, 0.1, 10)
	if r.renderTarget(s, screen, &c) != screen {
		t.Error("camera without a target should draw to the screen")
	}
	c.Target = rt
	if r.renderTarget(s, screen, &c) != tex.Image() {
		t.Error("camera should draw into its render texture")
	}

	c.Target = s.CreateTexture(CheckerImage(2, 2, 1), TextureOptions{})
	if r.renderTarget(s, screen, &c) != screen {
		t.Error("plain textures are not render targets")
	}
	if logs.Len() != 1 {
		t.Errorf("logged %d errors, want 1", logs.Len())
	}
}

func TestTextureFilterDefault(t *testing.T) {
	if FilterDefault.ebitenFilter(true) != ebiten.FilterLinear {
		t.Error("default filter should follow the config")
	}
	if FilterDefault.ebitenFilter(false) != ebiten.FilterNearest {
		t.Error("default filter should follow the config")
	}
	if FilterNearest.ebitenFilter(true) != ebiten.FilterNearest || FilterLinear.ebitenFilter(false) != ebiten.FilterLinear {
		t.Error("explicit filters must win")
	}
}
