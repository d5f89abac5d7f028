package model

import "testing"

func TestSampleFilenameRoundTrip(t *testing.T) {
	cases := []struct {
		track, stem string
		start, end  float64
	}{
		{"My Song", "vocals", 10, 12.5},
		{"Band - Live Set", "drums", 0, 0.01},
		{"track", "original", 59.999, 180},
	}
	for _, tc := range cases {
		name := SampleFilename(tc.track, tc.stem, tc.start, tc.end)
		meta, ok := ParseSampleFilename(name)
		if !ok {
			t.Fatalf("ParseSampleFilename(%q) failed", name)
		}
		if meta.TrackName != tc.track || meta.StemName != tc.stem {
			t.Errorf("%q: got track=%q stem=%q, want %q/%q", name, meta.TrackName, meta.StemName, tc.track, tc.stem)
		}
		if meta.Start != tc.start || meta.End != tc.end {
			t.Errorf("%q: got range %g-%g, want %g-%g", name, meta.Start, meta.End, tc.start, tc.end)
		}
	}
}

func TestLoopFilenameRoundTrip(t *testing.T) {
	name := LoopFilename("My Song", "bass", 4.25, 6.75, 8)
	if name != "My Song - bass (4.25s-6.75s) x8.wav" {
		t.Fatalf("unexpected loop filename %q", name)
	}
	meta, ok := ParseLoopFilename(name)
	if !ok {
		t.Fatalf("ParseLoopFilename(%q) failed", name)
	}
	if meta.TrackName != "My Song" || meta.StemName != "bass" || meta.Start != 4.25 || meta.End != 6.75 || meta.Count != 8 {
		t.Errorf("unexpected meta %+v", meta)
	}
}

func TestParseRejectsMalformedNames(t *testing.T) {
	bad := []string{
		"random.wav",
		"no range - vocals.wav",
		"track - vocals (5s-3s).wav",  // inverted range
		"track - vocals (1s-2s).mp3",  // wrong extension
		"track - vocals (as-bs).wav",  // non-numeric
	}
	for _, name := range bad {
		if _, ok := ParseSampleFilename(name); ok {
			t.Errorf("ParseSampleFilename(%q) should have failed", name)
		}
		if _, ok := ParseLoopFilename(name); ok {
			t.Errorf("ParseLoopFilename(%q) should have failed", name)
		}
	}
}

func TestLoopNameIsNotASample(t *testing.T) {
	name := LoopFilename("t", "vocals", 1, 2, 4)
	if _, ok := ParseSampleFilename(name); ok {
		t.Fatalf("loop filename %q parsed as sample", name)
	}
	if _, ok := ParseLoopFilename(SampleFilename("t", "vocals", 1, 2)); ok {
		t.Fatal("sample filename parsed as loop")
	}
}

func TestFormatSecondsRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.001, 12.5, 59.999, 179.99999} {
		name := SampleFilename("t", "s", v, v+1)
		meta, ok := ParseSampleFilename(name)
		if !ok || meta.Start != v {
			t.Errorf("FormatSeconds(%v) did not round-trip via %q", v, name)
		}
	}
}
