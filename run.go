package smol

import (
	"errors"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"go.uber.org/zap"
)

// RunConfig configures Run. Zero fields fall back to the scene's window
// config.
type RunConfig struct {
	Title  string
	Width  int
	Height int

	// ShowStats prints FPS and draw counts in the top-left corner.
	ShowStats bool

	// ScreenshotDir is where Game.Screenshot writes PNGs.
	ScreenshotDir string

	// Update runs once per tick before the scene updates.
	Update func(s *Scene) error
}

// Game adapts a Scene and a Renderer to ebiten.Game.
type Game struct {
	scene    *Scene
	renderer *Renderer
	cfg      RunConfig
	log      *zap.Logger

	screenshotQueue []string
}

// NewGame returns an ebiten.Game drawing s.
func NewGame(s *Scene, cfg RunConfig) *Game {
	w := s.cfg.Window
	if cfg.Title == "" {
		cfg.Title = w.Title
	}
	if cfg.Width <= 0 {
		cfg.Width = w.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = w.Height
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "screenshots"
	}
	return &Game{
		scene:    s,
		renderer: NewRenderer(&Context{Config: s.cfg, Log: s.log}),
		cfg:      cfg,
		log:      s.log,
	}
}

// Scene returns the scene being run.
func (g *Game) Scene() *Scene { return g.scene }

// Renderer returns the game's renderer.
func (g *Game) Renderer() *Renderer { return g.renderer }

// Update runs the user callback then Scene.Update. Batcher overflow is
// logged by the scene and does not stop the game.
func (g *Game) Update() error {
	if g.cfg.Update != nil {
		if err := g.cfg.Update(g.scene); err != nil {
			return err
		}
	}
	if err := g.scene.Update(); err != nil && !errors.Is(err, ErrOutOfCapacity) {
		return err
	}
	return nil
}

// Draw renders the scene and flushes queued screenshots.
func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Draw(screen, g.scene)
	if g.cfg.ShowStats {
		st := g.renderer.Stats()
		ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\ndraws: %d tris: %d",
			ebiten.ActualFPS(), ebiten.ActualTPS(), st.DrawCalls, st.Triangles))
	}
	g.flushScreenshots(screen)
}

// Layout keeps a fixed logical resolution.
func (g *Game) Layout(_, _ int) (int, int) {
	return g.cfg.Width, g.cfg.Height
}

// Run opens a window and drives s until the window closes or an update
// callback returns an error.
func Run(s *Scene, cfg RunConfig) error {
	g := NewGame(s, cfg)
	ebiten.SetWindowTitle(g.cfg.Title)
	ebiten.SetWindowSize(g.cfg.Width, g.cfg.Height)
	ebiten.SetVsyncEnabled(s.cfg.Window.VSync)
	return ebiten.RunGame(g)
}
