package models

import (
	"encoding/json"
	"testing"
)

func TestParseHoursMinutes(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0h 30m", 1800, false},
		{"2h 15m", 8100, false},
		{"3h", 10800, false},
		{"45m", 2700, false},
		{"2H 5M", 7500, false},
		{"", 0, true},
		{"abc", 0, true},
		{"2 hours", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseHoursMinutes(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDurationSecondsUnmarshal(t *testing.T) {
	var d DurationSeconds

	if err := json.Unmarshal([]byte(`1800`), &d); err != nil {
		t.Fatalf("int: %v", err)
	}
	if d != 1800 {
		t.Errorf("int = %d", d)
	}

	if err := json.Unmarshal([]byte(`"0h 30m"`), &d); err != nil {
		t.Fatalf("string: %v", err)
	}
	if d != 1800 {
		t.Errorf("string = %d", d)
	}

	if err := json.Unmarshal([]byte(`-5`), &d); err == nil {
		t.Error("negative seconds accepted")
	}
	if err := json.Unmarshal([]byte(`"forever"`), &d); err == nil {
		t.Error("garbage string accepted")
	}
}

func TestClampProgress(t *testing.T) {
	cases := map[int]int{-1: 0, 0: 0, 50: 50, 100: 100, 101: 100}
	for in, want := range cases {
		if got := ClampProgress(in); got != want {
			t.Errorf("ClampProgress(%d) = %d, want %d", in, got, want)
		}
	}
}
