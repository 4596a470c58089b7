package smol

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/phanxgames/smol/handle"
)

// Atlas maps region names to source rects on one texture. Use the rects
// with CreateSpriteNode and a batcher whose material binds Texture.
type Atlas struct {
	Texture handle.Handle[Texture]

	regions map[string]Rect
	log     *zap.Logger
}

// Rect returns the named region. A missing name is logged and yields the
// zero rect.
func (a *Atlas) Rect(name string) (Rect, bool) {
	r, ok := a.regions[name]
	if !ok {
		a.log.Warn("atlas region not found", zap.String("region", name))
	}
	return r, ok
}

// Len returns the number of regions.
func (a *Atlas) Len() int { return len(a.regions) }

// LoadAtlas parses TexturePacker JSON for the given texture. Both the hash
// format and the multi-page array format are read; only the first page of
// the latter is used.
func (s *Scene) LoadAtlas(jsonData []byte, texture handle.Handle[Texture]) (*Atlas, error) {
	var probe struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("smol: failed to parse atlas JSON: %w", err)
	}

	atlas := &Atlas{
		Texture: texture,
		regions: make(map[string]Rect),
		log:     s.log,
	}

	switch {
	case probe.Textures != nil:
		var pages []jsonTexturePage
		if err := json.Unmarshal(probe.Textures, &pages); err != nil {
			return nil, fmt.Errorf("smol: failed to parse atlas textures array: %w", err)
		}
		if len(pages) > 1 {
			s.log.Warn("atlas has several pages, using the first", zap.Int("pages", len(pages)))
		}
		if len(pages) > 0 {
			for name, f := range pages[0].Frames {
				atlas.regions[name] = f.rect()
			}
		}
	case probe.Frames != nil:
		var frames map[string]jsonFrame
		if err := json.Unmarshal(probe.Frames, &frames); err != nil {
			return nil, fmt.Errorf("smol: failed to parse atlas frames: %w", err)
		}
		for name, f := range frames {
			atlas.regions[name] = f.rect()
		}
	default:
		return nil, fmt.Errorf("smol: atlas JSON has neither \"frames\" nor \"textures\" key")
	}
	return atlas, nil
}

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame   jsonRect `json:"frame"`
	Rotated bool     `json:"rotated"`
}

type jsonTexturePage struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}

// rect returns the frame's rect as stored in the atlas. Rotated frames are
// stored with width and height swapped.
func (f jsonFrame) rect() Rect {
	w, h := f.Frame.W, f.Frame.H
	if f.Rotated {
		w, h = h, w
	}
	return Rect{X: float32(f.Frame.X), Y: float32(f.Frame.Y), Width: float32(w), Height: float32(h)}
}
