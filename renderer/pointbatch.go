package renderer

import (
	"math"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// pointsPerMesh keeps quad vertex indices within raylib's 16-bit index range.
const pointsPerMesh = 65536 / 4

// quadUV maps the sprite onto corners in quadCorners order.
var quadUV = [8]float32{0, 0, 0, 1, 1, 1, 1, 0}

// quadCorners are the (right, up) signs of the four corners: top-left,
// bottom-left, bottom-right, top-right. Counter-clockwise when facing the
// camera.
var quadCorners = [4][2]float32{{-1, 1}, {-1, -1}, {1, -1}, {1, 1}}

// billboardBasis returns unit right and up vectors of a camera at pos
// looking at target, with +Y as world up.
func billboardBasis(pos, target [3]float32) (right, up [3]float32) {
	f := normalize3(sub3(target, pos))
	right = normalize3(cross3(f, [3]float32{0, 1, 0}))
	if right == ([3]float32{}) {
		// Looking straight up or down
		right = [3]float32{1, 0, 0}
	}
	up = cross3(right, f)
	return right, up
}

// quadStyle sets how points expand into quads.
type quadStyle struct {
	size        float32 // base point size
	attenuation float32
	scale       float32 // multiplies the attenuated size
	gain        float32 // color gain
	alpha       float32
}

// fillQuads writes four camera-facing vertices and colors per point.
// positions and colors hold 3 floats per point; verts receives 12 floats
// and cols 16 bytes per point.
func fillQuads(verts []float32, cols []uint8, positions, colors []float32, right, up [3]float32, st quadStyle) {
	a := unit8(st.alpha)
	n := len(positions) / 3
	for i := 0; i < n; i++ {
		px, py, pz := positions[i*3], positions[i*3+1], positions[i*3+2]
		half := PointSize(st.size, st.attenuation, pz) * st.scale / 2

		r := unit8(colors[i*3] * st.gain)
		g := unit8(colors[i*3+1] * st.gain)
		b := unit8(colors[i*3+2] * st.gain)

		v := verts[i*12 : i*12+12]
		c := cols[i*16 : i*16+16]
		for k, sgn := range quadCorners {
			sr, su := sgn[0]*half, sgn[1]*half
			v[k*3] = px + right[0]*sr + up[0]*su
			v[k*3+1] = py + right[1]*sr + up[1]*su
			v[k*3+2] = pz + right[2]*sr + up[2]*su
			c[k*4], c[k*4+1], c[k*4+2], c[k*4+3] = r, g, b, a
		}
	}
}

// quadBatch holds the point quads as dynamic meshes in raylib-owned memory,
// so the whole cloud draws with one call per mesh.
type quadBatch struct {
	meshes []rl.Mesh
	points int
}

// resize reallocates the meshes when the point count changes.
func (b *quadBatch) resize(points int) {
	if points == b.points {
		return
	}
	b.unload()
	for left := points; left > 0; left -= pointsPerMesh {
		b.meshes = append(b.meshes, allocQuadMesh(min(left, pointsPerMesh)))
	}
	b.points = points
}

func allocQuadMesh(points int) rl.Mesh {
	nv := points * 4
	m := rl.Mesh{VertexCount: int32(nv), TriangleCount: int32(points * 2)}
	m.Vertices = (*float32)(rl.MemAlloc(uint32(nv * 3 * 4)))
	m.Texcoords = (*float32)(rl.MemAlloc(uint32(nv * 2 * 4)))
	m.Colors = (*uint8)(rl.MemAlloc(uint32(nv * 4)))
	m.Indices = (*uint16)(rl.MemAlloc(uint32(points * 6 * 2)))

	uv := unsafe.Slice(m.Texcoords, nv*2)
	idx := unsafe.Slice(m.Indices, points*6)
	for i := 0; i < points; i++ {
		copy(uv[i*8:i*8+8], quadUV[:])
		v := uint16(i * 4)
		idx[i*6], idx[i*6+1], idx[i*6+2] = v, v+1, v+2
		idx[i*6+3], idx[i*6+4], idx[i*6+5] = v, v+2, v+3
	}
	rl.UploadMesh(&m, true)
	return m
}

// draw refreshes vertex positions and colors, then draws every mesh. Must
// be called inside BeginMode3D.
func (b *quadBatch) draw(positions, colors []float32, right, up [3]float32, st quadStyle, mat rl.Material) {
	for i, m := range b.meshes {
		lo := i * pointsPerMesh
		hi := lo + int(m.VertexCount)/4
		nv := int(m.VertexCount)

		verts := unsafe.Slice(m.Vertices, nv*3)
		cols := unsafe.Slice(m.Colors, nv*4)
		fillQuads(verts, cols, positions[lo*3:hi*3], colors[lo*3:hi*3], right, up, st)

		rl.UpdateMeshBuffer(m, 0, unsafe.Slice((*byte)(unsafe.Pointer(m.Vertices)), nv*3*4), 0)
		rl.UpdateMeshBuffer(m, 3, unsafe.Slice(m.Colors, nv*4), 0)
		rl.DrawMesh(m, mat, rl.MatrixIdentity())
	}
}

// unload frees the meshes on the CPU and GPU.
func (b *quadBatch) unload() {
	for i := range b.meshes {
		rl.UnloadMesh(&b.meshes[i])
	}
	b.meshes = nil
	b.points = 0
}

// drop frees CPU-side arrays only; the GPU buffers went with a lost context.
func (b *quadBatch) drop() {
	for _, m := range b.meshes {
		rl.MemFree(unsafe.Pointer(m.Vertices))
		rl.MemFree(unsafe.Pointer(m.Texcoords))
		rl.MemFree(unsafe.Pointer(m.Colors))
		rl.MemFree(unsafe.Pointer(m.Indices))
	}
	b.meshes = nil
	b.points = 0
}

func sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize3(v [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if l < 1e-6 {
		return [3]float32{}
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
