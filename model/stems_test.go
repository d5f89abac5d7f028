package model

import "testing"

func TestStemNames(t *testing.T) {
	cases := []struct {
		count int
		want  []string
	}{
		{2, []string{"vocals", "accompaniment"}},
		{4, []string{"vocals", "drums", "bass", "other"}},
		{5, []string{"vocals", "drums", "bass", "piano", "other"}},
	}
	for _, tc := range cases {
		names, err := StemNames(tc.count)
		if err != nil {
			t.Fatalf("StemNames(%d): %v", tc.count, err)
		}
		if len(names) != len(tc.want) {
			t.Fatalf("StemNames(%d) = %v, want %v", tc.count, names, tc.want)
		}
		for i := range names {
			if names[i] != tc.want[i] {
				t.Errorf("StemNames(%d)[%d] = %q, want %q", tc.count, i, names[i], tc.want[i])
			}
		}
	}

	for _, bad := range []int{0, 1, 3, 6, -2} {
		if _, err := StemNames(bad); err == nil {
			t.Errorf("StemNames(%d) should fail", bad)
		}
		if ValidStemCount(bad) {
			t.Errorf("ValidStemCount(%d) should be false", bad)
		}
	}
}

func TestStemCountFor(t *testing.T) {
	if got := StemCountFor([]string{"vocals", "drums", "bass", "piano", "other"}); got != 5 {
		t.Errorf("piano set: got %d", got)
	}
	if got := StemCountFor([]string{"vocals", "accompaniment"}); got != 2 {
		t.Errorf("accompaniment set: got %d", got)
	}
	if got := StemCountFor([]string{"vocals", "drums", "bass", "other"}); got != 4 {
		t.Errorf("four set: got %d", got)
	}
}

func TestValidateRange(t *testing.T) {
	dur := 180.0
	if err := ValidateRange(10, 12.5, &dur); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := ValidateRange(12.5, 10, &dur); err == nil {
		t.Error("inverted range accepted")
	}
	if err := ValidateRange(-1, 5, &dur); err == nil {
		t.Error("negative start accepted")
	}
	if err := ValidateRange(170, 190, &dur); err == nil {
		t.Error("out-of-bounds end accepted")
	}
	if err := ValidateRange(170, 190, nil); err != nil {
		t.Errorf("nil duration should skip upper bound: %v", err)
	}
	if err := ValidateRange(5, 5, &dur); err == nil {
		t.Error("zero-length range accepted")
	}
}

func TestValidLoopCount(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16} {
		if !ValidLoopCount(n) {
			t.Errorf("ValidLoopCount(%d) = false", n)
		}
	}
	for _, n := range []int{0, 1, 3, 32, -4} {
		if ValidLoopCount(n) {
			t.Errorf("ValidLoopCount(%d) = true", n)
		}
	}
}
