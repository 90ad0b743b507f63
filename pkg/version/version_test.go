package version

import (
	"errors"
	"testing"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		input string
		want  Protocol
	}{
		{"1.0", Protocol{1, 0}},
		{"1.1", Protocol{1, 1}},
		{"2.0", Protocol{2, 0}},
		{"10.23", Protocol{10, 23}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.String() != tt.input {
				t.Errorf("String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "1", "abc", "1.0.0", "1.x", "-1.0", ".1", "1."} {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	v1 := Protocol{1, 0}
	if !v1.Compatible(Protocol{1, 7}) {
		t.Error("1.0 should be compatible with 1.7")
	}
	if v1.Compatible(Protocol{2, 0}) {
		t.Error("1.0 should not be compatible with 2.0")
	}
}

func TestALPN(t *testing.T) {
	if got := (Protocol{Major: 3}).ALPN(); got != "tether/3" {
		t.Errorf("ALPN() = %q, want tether/3", got)
	}

	major, err := MajorFromALPN("tether/12")
	if err != nil || major != 12 {
		t.Errorf("MajorFromALPN(tether/12) = %d, %v", major, err)
	}

	for _, bad := range []string{"mash/1", "tether/", "tether/x", "tether/70000"} {
		if _, err := MajorFromALPN(bad); err == nil {
			t.Errorf("MajorFromALPN(%q) should fail", bad)
		}
	}

	supported := SupportedALPN()
	if len(supported) != 1 || supported[0] != "tether/1" {
		t.Errorf("SupportedALPN() = %v", supported)
	}
}

func TestCheckNegotiated(t *testing.T) {
	if err := CheckNegotiated(""); err != nil {
		t.Errorf("CheckNegotiated(\"\") = %v", err)
	}
	if err := CheckNegotiated("tether/1"); err != nil {
		t.Errorf("CheckNegotiated(tether/1) = %v", err)
	}
	if err := CheckNegotiated("tether/2"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("CheckNegotiated(tether/2) = %v, want ErrIncompatible", err)
	}
	if err := CheckNegotiated("h2"); err == nil {
		t.Error("CheckNegotiated(h2) should fail")
	}
}
