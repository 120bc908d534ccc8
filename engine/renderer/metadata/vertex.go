package metadata

/**
 * @brief One vertex of a batched triangle. Position z carries the draw depth.
 */
type Vertex struct {
	Position [3]int16
	Tint     [4]uint8
	TexCoord [2]float32
}

/**
 * @brief The vertices accumulated for one draw context, plus whether the bucket
 * was used since the last prune.
 */
type VertexList struct {
	Vertices []Vertex
	Active   bool
}

// Empty reports whether there is nothing to draw.
func (vl *VertexList) Empty() bool {
	return len(vl.Vertices) == 0
}

// Quad appends the two triangles covering (x1,y1)-(x2,y2) with texture coordinates
// (u1,v1)-(u2,v2), in the order x1y1, x1y2, x2y1, x1y2, x2y1, x2y2.
func (vl *VertexList) Quad(x1, y1, x2, y2, depth int16, u1, v1, u2, v2 float32, tint [4]uint8) {
	vl.Vertices = append(vl.Vertices,
		Vertex{Position: [3]int16{x1, y1, depth}, Tint: tint, TexCoord: [2]float32{u1, v1}},
		Vertex{Position: [3]int16{x1, y2, depth}, Tint: tint, TexCoord: [2]float32{u1, v2}},
		Vertex{Position: [3]int16{x2, y1, depth}, Tint: tint, TexCoord: [2]float32{u2, v1}},
		Vertex{Position: [3]int16{x1, y2, depth}, Tint: tint, TexCoord: [2]float32{u1, v2}},
		Vertex{Position: [3]int16{x2, y1, depth}, Tint: tint, TexCoord: [2]float32{u2, v1}},
		Vertex{Position: [3]int16{x2, y2, depth}, Tint: tint, TexCoord: [2]float32{u2, v2}},
	)
}

// Quad4 appends two triangles for an arbitrary quadrilateral given as
// top-left, bottom-left, top-right, bottom-right corners.
func (vl *VertexList) Quad4(corners [4][2]int16, depth int16, uv [4][2]float32, tint [4]uint8) {
	tl, bl, tr, br := corners[0], corners[1], corners[2], corners[3]
	vl.Vertices = append(vl.Vertices,
		Vertex{Position: [3]int16{tl[0], tl[1], depth}, Tint: tint, TexCoord: uv[0]},
		Vertex{Position: [3]int16{bl[0], bl[1], depth}, Tint: tint, TexCoord: uv[1]},
		Vertex{Position: [3]int16{tr[0], tr[1], depth}, Tint: tint, TexCoord: uv[2]},
		Vertex{Position: [3]int16{bl[0], bl[1], depth}, Tint: tint, TexCoord: uv[1]},
		Vertex{Position: [3]int16{tr[0], tr[1], depth}, Tint: tint, TexCoord: uv[2]},
		Vertex{Position: [3]int16{br[0], br[1], depth}, Tint: tint, TexCoord: uv[3]},
	)
}

// Triangle appends a single untextured triangle.
func (vl *VertexList) Triangle(a, b, c [2]int16, depth int16, tint [4]uint8) {
	vl.Vertices = append(vl.Vertices,
		Vertex{Position: [3]int16{a[0], a[1], depth}, Tint: tint},
		Vertex{Position: [3]int16{b[0], b[1], depth}, Tint: tint},
		Vertex{Position: [3]int16{c[0], c[1], depth}, Tint: tint},
	)
}

// Bounds returns the bounding rectangle of the list's positions.
func (vl *VertexList) Bounds() Rect {
	if len(vl.Vertices) == 0 {
		return Rect{}
	}
	minX, minY := vl.Vertices[0].Position[0], vl.Vertices[0].Position[1]
	maxX, maxY := minX, minY
	for _, v := range vl.Vertices[1:] {
		minX = min(minX, v.Position[0])
		minY = min(minY, v.Position[1])
		maxX = max(maxX, v.Position[0])
		maxY = max(maxY, v.Position[1])
	}
	return Rect{X: int(minX), Y: int(minY), W: int(maxX - minX), H: int(maxY - minY)}
}
