package smol

import (
	"time"

	"go.uber.org/zap"
)

// FrameStats holds timing and counts for the last Scene.Update.
type FrameStats struct {
	TransformTime time.Duration
	RebuildTime   time.Duration
	Nodes         int
	Batchers      int
	Rebuilt       int // batchers rebuilt this frame
	Quads         int
}

// Stats returns the stats of the last Update.
func (s *Scene) Stats() FrameStats { return s.stats }

// debugLog writes the frame stats at debug level when debug mode is on.
func (s *Scene) debugLog() {
	if !s.debug {
		return
	}
	st := &s.stats
	st.Batchers = s.batchers.Count()
	st.Quads = 0
	for _, b := range s.batchers.Slice() {
		st.Quads += b.quadCount
	}
	s.log.Debug("frame",
		zap.Uint64("frame", s.frame),
		zap.Duration("transform", st.TransformTime),
		zap.Duration("rebuild", st.RebuildTime),
		zap.Int("nodes", st.Nodes),
		zap.Int("batchers", st.Batchers),
		zap.Int("rebuilt", st.Rebuilt),
		zap.Int("quads", st.Quads))
}
