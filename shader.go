package smol

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/smol/handle"
)

// Shader is a compiled Kage program. A shader that failed to compile keeps
// its handle valid with Err set; materials using it are skipped at draw time.
type Shader struct {
	Name   string
	Source []byte
	Err    error

	program *ebiten.Shader
}

// Valid reports whether the shader compiled.
func (sh *Shader) Valid() bool { return sh.program != nil }

// Program returns the compiled ebiten shader, or nil.
func (sh *Shader) Program() *ebiten.Shader { return sh.program }

// CreateShader compiles Kage source. Compile errors are logged and recorded
// on the Shader.
func (s *Scene) CreateShader(name string, src []byte) handle.Handle[Shader] {
	sh := Shader{Name: name, Source: src}
	prog, err := ebiten.NewShader(src)
	if err != nil {
		sh.Err = fmt.Errorf("smol: failed to compile shader %q: %w", name, err)
		s.log.Error("shader compile failed", zap.String("shader", name), zap.Error(err))
	} else {
		sh.program = prog
	}
	return s.shaders.Add(sh)
}

// Shader returns the shader for h, or nil if h is stale.
func (s *Scene) Shader(h handle.Handle[Shader]) *Shader {
	return s.shaders.Lookup(h)
}

// DestroyShader releases the program and invalidates h.
func (s *Scene) DestroyShader(h handle.Handle[Shader]) bool {
	if sh := s.shaders.Lookup(h); sh != nil && sh.program != nil {
		sh.program.Deallocate()
	}
	return s.shaders.Remove(h)
}
