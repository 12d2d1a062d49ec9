package indexer

import "testing"

func TestTriLL(t *testing.T) {
	cols := 5
	o := Triangle(0, cols, 2, 1)
	want := Offsets{
		V0: vertexOffset(cols, 2, 1),
		V1: vertexOffset(cols, 2, 2),
		V2: vertexOffset(cols, 3, 1),
	}
	if o != want {
		t.Errorf("Triangle(0,...) = %+v, want %+v", o, want)
	}
}

func TestTriUR(t *testing.T) {
	cols := 5
	o := Triangle(1, cols, 2, 1)
	want := Offsets{
		V0: vertexOffset(cols, 2, 2),
		V1: vertexOffset(cols, 3, 2),
		V2: vertexOffset(cols, 3, 1),
	}
	if o != want {
		t.Errorf("Triangle(1,...) = %+v, want %+v", o, want)
	}
}

func TestVertexOffsetStride(t *testing.T) {
	if vertexOffset(10, 0, 1) != 3 {
		t.Errorf("vertexOffset stride wrong")
	}
	if vertexOffset(10, 1, 0) != 30 {
		t.Errorf("vertexOffset row stride wrong")
	}
}
