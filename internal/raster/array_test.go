package raster

import "testing"

func TestNewArrayDispatch(t *testing.T) {
	tests := []struct {
		typ  PixelType
		want int
	}{
		{Byte, 1},
		{Int16, 2},
		{UInt16, 2},
		{Int32, 4},
		{UInt32, 4},
		{Float32, 4},
		{Float64, 8},
	}
	for _, tc := range tests {
		a := NewArray(tc.typ, 3, 2)
		if a.Type() != tc.typ {
			t.Errorf("NewArray(%v): Type() = %v, want %v", tc.typ, a.Type(), tc.typ)
		}
		if a.Width() != 3 || a.Height() != 2 {
			t.Errorf("NewArray(%v): shape = %dx%d, want 3x2", tc.typ, a.Width(), a.Height())
		}
		if got := len(a.Bytes()); got != 3*2*tc.want {
			t.Errorf("NewArray(%v): Bytes() len = %d, want %d", tc.typ, got, 3*2*tc.want)
		}
	}
}

func TestFillAndGetFloat(t *testing.T) {
	a := NewArray(Int16, 2, 2)
	a.Fill(-9999)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if v := a.GetFloat(r, c); v != -9999 {
				t.Errorf("GetFloat(%d,%d) = %v, want -9999", r, c, v)
			}
		}
	}
	a.SetFloat(1, 1, 42)
	if v := a.GetFloat(1, 1); v != 42 {
		t.Errorf("GetFloat(1,1) after SetFloat = %v, want 42", v)
	}
	if v := a.GetFloat(0, 0); v != -9999 {
		t.Errorf("GetFloat(0,0) = %v, want unchanged -9999", v)
	}
}

func TestPasteFromClips(t *testing.T) {
	dst := NewArray(Byte, 4, 4)
	dst.Fill(0)

	src := NewArray(Byte, 3, 3)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			src.SetFloat(r, c, 9)
		}
	}

	// Paste at (2,2): only the top-left 2x2 of src fits inside dst.
	dst.PasteFrom(src, 2, 2)

	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			want := 0.0
			if r >= 2 && c >= 2 {
				want = 9
			}
			if got := dst.GetFloat(r, c); got != want {
				t.Errorf("dst[%d][%d] = %v, want %v", r, c, got, want)
			}
		}
	}
}

func TestMergeNonNullLastWins(t *testing.T) {
	const null = -1.0

	base := NewArray(Int16, 2, 1)
	base.SetFloat(0, 0, null)
	base.SetFloat(0, 1, 5)

	overlay := NewArray(Int16, 2, 1)
	overlay.SetFloat(0, 0, 7)
	overlay.SetFloat(0, 1, null)

	if err := base.MergeNonNull(overlay, null); err != nil {
		t.Fatalf("MergeNonNull: %v", err)
	}

	if v := base.GetFloat(0, 0); v != 7 {
		t.Errorf("merged[0] = %v, want 7 (overlay's non-null value)", v)
	}
	if v := base.GetFloat(0, 1); v != 5 {
		t.Errorf("merged[1] = %v, want 5 (base's value preserved since overlay was null)", v)
	}
}

func TestMergeNonNullShapeMismatchReturnsError(t *testing.T) {
	a := NewArray(Byte, 2, 2)
	b := NewArray(Byte, 3, 3)
	if err := a.MergeNonNull(b, 0); err == nil {
		t.Fatal("expected error on shape mismatch")
	}
}

func TestDecodeArrayRoundTrip(t *testing.T) {
	a := NewArray(Float32, 2, 2)
	a.SetFloat(0, 0, 1.5)
	a.SetFloat(0, 1, -2.5)
	a.SetFloat(1, 0, 0)
	a.SetFloat(1, 1, 100)

	raw := a.Bytes()
	decoded, err := DecodeArray(Float32, 2, 2, raw)
	if err != nil {
		t.Fatalf("DecodeArray: %v", err)
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if got, want := decoded.GetFloat(r, c), a.GetFloat(r, c); got != want {
				t.Errorf("decoded[%d][%d] = %v, want %v", r, c, got, want)
			}
		}
	}
}

func TestDecodeArrayShortRead(t *testing.T) {
	_, err := DecodeArray(Float64, 4, 4, make([]byte, 4))
	if err == nil {
		t.Fatal("expected error for short read")
	}
}
