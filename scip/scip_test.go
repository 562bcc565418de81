package scip

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	widths := []int{2, 3, 4}
	for _, width := range widths {
		max := 1 << uint(6*width)
		// Exhaustively testing every value up to 2^24 is wasteful; sample
		// the boundaries plus a spread across the range.
		values := []int{0, 1, max - 1}
		for v := 0; v < max; v += max/37 + 1 {
			values = append(values, v)
		}
		for _, v := range values {
			encoded := Encode(v, width)
			if len(encoded) != width {
				t.Fatalf("width %d: Encode(%d) produced %d bytes", width, v, len(encoded))
			}
			got := Decode(encoded)
			if got != v {
				t.Errorf("width %d: Decode(Encode(%d)) = %d", width, v, got)
			}
		}
	}
}

func TestChecksumAppendVerify(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("0"),
		[]byte("DMIN:20"),
		[]byte("a very much longer line of ASCII to sum over"),
	}
	for _, s := range cases {
		ck := Checksum(s)
		line := append(append([]byte(nil), s...), ck)
		if !VerifyChecksum(line) {
			t.Errorf("VerifyChecksum(%q ++ checksum) = false, want true", s)
		}
	}
}

func TestVerifyChecksumRejectsMismatch(t *testing.T) {
	line := []byte("DMIN:20X") // wrong trailing byte
	if VerifyChecksum(line) {
		t.Errorf("VerifyChecksum(%q) = true, want false", line)
	}
}

func TestSampleDecoderSingleLine(t *testing.T) {
	length := make([]int, 3)
	d := NewSampleDecoder(KindDistance, false, length, nil, 3)

	a := Encode(44, 3)
	b := Encode(45, 3)
	c := Encode(46, 3)
	line := append(append(append([]byte(nil), a...), b...), c...)

	n, err := d.Feed(line)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Steps() = %d, want 3", n)
	}
	want := []int{44, 45, 46}
	for i, w := range want {
		if length[i] != w {
			t.Errorf("length[%d] = %d, want %d", i, length[i], w)
		}
	}
}

func TestSampleDecoderMultiEchoDemux(t *testing.T) {
	// "aaa&bbb&ccc ddd" for step 0 (3 echoes) then step 1 (1 echo),
	// matching spec.md §8 scenario 5.
	length := make([]int, 2*MaxEcho)
	d := NewSampleDecoder(KindMultiecho, false, length, nil, 2)

	aaa := Encode(10, 3)
	bbb := Encode(20, 3)
	ccc := Encode(30, 3)
	ddd := Encode(40, 3)

	var line []byte
	line = append(line, aaa...)
	line = append(line, '&')
	line = append(line, bbb...)
	line = append(line, '&')
	line = append(line, ccc...)
	line = append(line, ddd...)

	if _, err := d.Feed(line); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	want := []int{10, 20, 30, 40, 0, 0}
	for i, w := range want {
		if length[i] != w {
			t.Errorf("length[%d] = %d, want %d", i, length[i], w)
		}
	}
}

func TestSampleDecoderSpansLines(t *testing.T) {
	length := make([]int, 2)
	d := NewSampleDecoder(KindDistance, false, length, nil, 2)

	full := append(Encode(100, 3), Encode(200, 3)...)

	// Feed the first sample's bytes split across two Feed calls.
	if _, err := d.Feed(full[:2]); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if d.Steps() != 0 {
		t.Fatalf("Steps() after partial feed = %d, want 0", d.Steps())
	}
	if _, err := d.Feed(full[2:]); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if d.Steps() != 2 {
		t.Fatalf("Steps() = %d, want 2", d.Steps())
	}
	if length[0] != 100 || length[1] != 200 {
		t.Errorf("length = %v, want [100 200]", length)
	}
}

func TestSampleDecoderDistanceIntensity(t *testing.T) {
	length := make([]int, 1)
	intensity := make([]int, 1)
	d := NewSampleDecoder(KindDistanceIntensity, false, length, intensity, 1)

	line := append(Encode(500, 3), Encode(900, 3)...)
	if _, err := d.Feed(line); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if length[0] != 500 || intensity[0] != 900 {
		t.Errorf("length=%d intensity=%d, want 500/900", length[0], intensity[0])
	}
}

func TestSampleDecoderTooManySteps(t *testing.T) {
	length := make([]int, 1)
	d := NewSampleDecoder(KindDistance, false, length, nil, 0)

	line := append(Encode(1, 3), Encode(2, 3)...)
	if _, err := d.Feed(line); err != ErrTooManySteps {
		t.Fatalf("Feed error = %v, want ErrTooManySteps", err)
	}
}
