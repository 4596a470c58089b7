// Package smol is a small retained-mode 3D scene engine for [Ebitengine].
//
// A [Scene] owns every resource (shaders, textures, materials, meshes,
// renderables, fonts, sprite batchers) and every [Node]. Nothing is handed
// out by pointer for keeps: creation returns a generational
// [handle.Handle], and lookups through the Scene return nil once the
// resource is destroyed. Removing a resource swaps the last element of its
// packed array into the gap, so pointers from lookups are valid only until
// the next creation or destruction of that kind.
//
// # Quick start
//
//	ctx, err := smol.NewContext(nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	scene := smol.NewScene(ctx)
//	scene.CreatePerspectiveCameraNode(60, 0.1, 100, smol.At(smol.Vec3{Z: 10}))
//
//	mat, _ := scene.CreateMaterial(smol.MaterialDesc{
//		Textures: []handle.Handle[smol.Texture]{scene.LoadTexture("hero.png", smol.TextureOptions{})},
//	})
//	batcher := scene.CreateSpriteBatcher(mat, 0, smol.BatchCamera)
//	scene.CreateSpriteNode(batcher, smol.Rect{Width: 32, Height: 32}, 2, 2,
//		smol.ColorWhite, smol.At(smol.Vec3{X: 1, Y: 1}))
//
//	smol.Run(scene, smol.RunConfig{Title: "hello", Width: 800, Height: 600})
//
// # Frame
//
// [Scene.Update] resolves world matrices top-down (parents before
// children), flags the batchers of every moved or edited sprite and text
// node, and rebuilds only those batchers. [Renderer.Draw] then walks the
// cameras in priority order and draws, per camera, the nodes whose layer
// intersects the camera's mask, sorted by material render queue.
//
// # Sprites and text
//
// Sprite and text nodes do not draw themselves. Each references a
// [SpriteBatcher], which packs the quads of all its nodes into one dynamic
// mesh. A sprite's quad has its bottom-left corner at the node origin;
// text hangs down from the node origin, one line per LineHeight.
//
// [Ebitengine]: https://ebitengine.org
package smol
