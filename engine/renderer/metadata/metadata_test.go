package metadata

import "testing"

func TestColorBytesTruncates(t *testing.T) {
	tests := []struct {
		in   Color
		want [4]uint8
	}{
		{ColorWhite, [4]uint8{255, 255, 255, 255}},
		{Color{R: 0.5, G: 0.25, B: 0, A: 1}, [4]uint8{127, 63, 0, 255}},
		{Color{R: -1, G: 2, B: 0.999, A: 0}, [4]uint8{0, 255, 254, 0}},
	}
	for _, tt := range tests {
		if got := tt.in.Bytes(); got != tt.want {
			t.Errorf("%+v.Bytes() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != (Color{R: 1, G: 0, B: 0, A: 1}) {
		t.Errorf("ParseColor(#ff0000) = %+v", c)
	}
	if _, err := ParseColor("not-a-colour"); err == nil {
		t.Error("expected an error for garbage input")
	}
}

func TestPictureTintCache(t *testing.T) {
	p := NewPicture()
	red := Color{R: 1, A: 1}
	if !p.TintChanged(red) {
		t.Fatal("first tint must be reported as a change")
	}
	if p.TintChanged(red) {
		t.Fatal("same tint must not be reported again")
	}
	if !p.TintChanged(ColorWhite) {
		t.Fatal("a different tint must be reported")
	}
	p.ResetHandles()
	if !p.TintChanged(ColorWhite) {
		t.Fatal("releasing the handles must invalidate the tint cache")
	}
}

func TestPictureReset(t *testing.T) {
	p := NewPicture()
	id := p.ID
	p.Path = "graphics/block-1.png"
	p.W, p.H = 32, 32
	p.Inited = true
	p.LazyLoaded = true
	p.Handles[0] = "tex"
	p.SlabCount = 1
	p.MaskHandle = "mask"

	p.Reset()
	if p.HasTexture() || p.HasMask() || p.Inited || p.LazyLoaded || p.Path != "" || p.W != 0 {
		t.Errorf("descriptor not cleared: %+v", p)
	}
	if p.ID != id {
		t.Error("Reset must keep the identifier")
	}
}

func TestVertexListQuadOrder(t *testing.T) {
	var vl VertexList
	vl.Quad(1, 2, 3, 4, 7, 0, 0, 1, 1, [4]uint8{255, 255, 255, 255})
	if len(vl.Vertices) != 6 {
		t.Fatalf("quad must produce 6 vertices, got %d", len(vl.Vertices))
	}
	want := [][3]int16{{1, 2, 7}, {1, 4, 7}, {3, 2, 7}, {1, 4, 7}, {3, 2, 7}, {3, 4, 7}}
	for i, v := range vl.Vertices {
		if v.Position != want[i] {
			t.Errorf("vertex %d = %v, want %v", i, v.Position, want[i])
		}
	}
	if b := vl.Bounds(); b != (Rect{X: 1, Y: 2, W: 2, H: 2}) {
		t.Errorf("Bounds = %+v", b)
	}
}

func TestProgramFlags(t *testing.T) {
	var none *Program
	if none.Multipass() || none.ReadsBuffer() {
		t.Error("nil program has no requirements")
	}
	mp := &Program{Name: "wave", Flags: ProgramMultipass}
	if !mp.Multipass() || !mp.ReadsBuffer() {
		t.Error("multipass programs read the buffer")
	}
	bm := &Program{Name: "bitmask", Flags: ProgramBitmask}
	if bm.Multipass() || !bm.ReadsBuffer() {
		t.Error("bitmask programs read the buffer but are single pass")
	}
}
