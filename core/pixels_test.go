package core

import (
	"bytes"
	"testing"
)

// drain reads a source the way showPixels does.
func drain(src PixelSource) []byte {
	var out []byte
	src.PreStepDithering()
	b := src.Load(0)
	for src.Has(1) {
		src.StepDithering()
		out = append(out, b)
		out = append(out, src.Load(1))
		out = append(out, src.Load(2))
		b = src.AdvanceAndLoad0()
	}
	return out
}

func TestPixelCursorOrderAndScale(t *testing.T) {
	pixels := []byte{0xFF, 0x80, 0x01, 10, 20, 30, 0xEE} // trailing partial pixel ignored
	cases := []struct {
		order ColorOrder
		scale RGB
		want  []byte
	}{
		{OrderRGB, White, []byte{0xFF, 0x80, 0x01, 10, 20, 30}},
		{OrderGRB, White, []byte{0x80, 0xFF, 0x01, 20, 10, 30}},
		{OrderBGR, White, []byte{0x01, 0x80, 0xFF, 30, 20, 10}},
		{OrderRGB, RGB{127, 255, 0}, []byte{0x7F, 0x80, 0x00, 5, 20, 0}},
	}
	for _, tc := range cases {
		var c PixelCursor
		c.Reset(pixels, tc.order, tc.scale, DitherNone)
		if got := drain(&c); !bytes.Equal(got, tc.want) {
			t.Errorf("%s scale %v: got % x, want % x", tc.order, tc.scale, got, tc.want)
		}
	}
}

func TestPixelCursorSolid(t *testing.T) {
	var c PixelCursor
	c.ResetSolid(RGB{1, 2, 3}, 4, OrderGRB, White, DitherNone)
	want := bytes.Repeat([]byte{2, 1, 3}, 4)
	if got := drain(&c); !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}

	c.ResetSolid(RGB{1, 2, 3}, -1, OrderRGB, White, DitherNone)
	if c.Has(1) {
		t.Fatal("negative count produced pixels")
	}
}

func TestPixelCursorEmpty(t *testing.T) {
	var c PixelCursor
	c.Reset(nil, OrderRGB, White, DitherBinary)
	if c.Load(0) != 0 || c.Has(1) {
		t.Fatal("empty cursor yielded data")
	}
	if got := drain(&c); len(got) != 0 {
		t.Fatalf("drained % x from an empty cursor", got)
	}
}

func TestBinaryDitherAveragesOut(t *testing.T) {
	var c PixelCursor
	want := []byte{50, 51, 50, 51, 50, 51, 50, 51}
	sum := 0
	for frame, w := range want {
		c.Reset([]byte{100, 0, 0}, OrderRGB, RGB{128, 128, 128}, DitherBinary)
		got := drain(&c)
		if got[0] != w {
			t.Errorf("frame %d: %d, want %d", frame, got[0], w)
		}
		if got[1] != 0 || got[2] != 0 {
			t.Errorf("frame %d: dithering lit a zero channel: % x", frame, got)
		}
		sum += int(got[0])
	}
	// Undithered the channel would sit at 50 every frame.
	if sum != 404 {
		t.Errorf("8 frame sum %d, want 404", sum)
	}
}

func TestNoDitherIsDeterministic(t *testing.T) {
	pixels := []byte{101, 33, 7, 250, 1, 0}
	var c PixelCursor
	c.Reset(pixels, OrderGRB, RGB{128, 200, 64}, DitherNone)
	first := drain(&c)
	for i := 0; i < 9; i++ {
		c.Reset(pixels, OrderGRB, RGB{128, 200, 64}, DitherNone)
		if got := drain(&c); !bytes.Equal(got, first) {
			t.Fatalf("frame %d differs: % x vs % x", i, got, first)
		}
	}
}
