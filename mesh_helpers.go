package smol

// QuadMeshData returns a width×height quad in the XY plane with its
// bottom-left corner at the origin, facing +Z.
func QuadMeshData(width, height float32, c Color) MeshData {
	return MeshData{
		Positions: []Vec3{{0, 0, 0}, {width, 0, 0}, {width, height, 0}, {0, height, 0}},
		Indices:   []uint32{0, 1, 2, 2, 3, 0},
		Colors:    []Color{c, c, c, c},
		UV0:       []Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Normals:   []Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
	}
}

// PolygonMeshData fan-triangulates a convex polygon in the XY plane.
// UVs map the bounding box of the points to [0, 1]. Returns empty data for
// fewer than three points.
func PolygonMeshData(points []Vec2, c Color) MeshData {
	n := len(points)
	if n < 3 {
		return MeshData{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	bbW, bbH := maxX-minX, maxY-minY

	d := MeshData{
		Positions: make([]Vec3, n),
		Colors:    make([]Color, n),
		UV0:       make([]Vec2, n),
		Indices:   make([]uint32, 0, (n-2)*3),
	}
	for i, p := range points {
		d.Positions[i] = Vec3{p.X, p.Y, 0}
		d.Colors[i] = c
		var u, v float32
		if bbW > 0 {
			u = (p.X - minX) / bbW
		}
		if bbH > 0 {
			v = (p.Y - minY) / bbH
		}
		d.UV0[i] = Vec2{u, v}
	}

	// Fan triangulation: vertex 0 is the hub.
	for i := 0; i < n-2; i++ {
		d.Indices = append(d.Indices, 0, uint32(i+1), uint32(i+2))
	}
	return d
}

// GridMeshData returns a cols×rows grid of quads covering width×height,
// useful as a deformable surface (vertices = (cols+1)*(rows+1)).
func GridMeshData(cols, rows int, width, height float32, c Color) MeshData {
	cols = max(cols, 1)
	rows = max(rows, 1)
	vcols := cols + 1
	vrows := rows + 1

	d := MeshData{
		Positions: make([]Vec3, 0, vcols*vrows),
		Colors:    make([]Color, 0, vcols*vrows),
		UV0:       make([]Vec2, 0, vcols*vrows),
		Indices:   make([]uint32, 0, cols*rows*6),
	}
	for r := 0; r < vrows; r++ {
		for col := 0; col < vcols; col++ {
			u := float32(col) / float32(cols)
			v := float32(r) / float32(rows)
			d.Positions = append(d.Positions, Vec3{u * width, v * height, 0})
			d.Colors = append(d.Colors, c)
			d.UV0 = append(d.UV0, Vec2{u, v})
		}
	}
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			bl := uint32(r*vcols + col)
			br := bl + 1
			tl := uint32((r+1)*vcols + col)
			tr := tl + 1
			d.Indices = append(d.Indices, bl, br, tr, tr, tl, bl)
		}
	}
	return d
}

// CubeMeshData returns an axis-aligned cube centered on the origin with
// outward, counter-clockwise faces and one UV square per face.
func CubeMeshData(size float32, c Color) MeshData {
	h := size / 2
	faces := [6]struct {
		normal  Vec3
		corners [4]Vec3
	}{
		{Vec3{0, 0, 1}, [4]Vec3{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{Vec3{0, 0, -1}, [4]Vec3{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{Vec3{1, 0, 0}, [4]Vec3{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{Vec3{-1, 0, 0}, [4]Vec3{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{Vec3{0, 1, 0}, [4]Vec3{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{Vec3{0, -1, 0}, [4]Vec3{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}
	d := MeshData{
		Positions: make([]Vec3, 0, 24),
		Colors:    make([]Color, 0, 24),
		UV0:       make([]Vec2, 0, 24),
		Normals:   make([]Vec3, 0, 24),
		Indices:   make([]uint32, 0, 36),
	}
	for i, f := range faces {
		base := uint32(i * 4)
		d.Positions = append(d.Positions, f.corners[:]...)
		d.UV0 = append(d.UV0, Vec2{0, 0}, Vec2{1, 0}, Vec2{1, 1}, Vec2{0, 1})
		for range 4 {
			d.Colors = append(d.Colors, c)
			d.Normals = append(d.Normals, f.normal)
		}
		for _, idx := range quadIndices {
			d.Indices = append(d.Indices, base+idx)
		}
	}
	return d
}
