package phone

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"e164 unchanged", "+15551234567", "+15551234567"},
		{"formatting stripped", "+1 (555) 123-4567", "+15551234567"},
		{"plus added", "15551234567", "+15551234567"},
		{"duplicate plus collapsed", "++1555++1234567", "+15551234567"},
		{"international access prefix", "0015551234567", "+15551234567"},
		{"bd domestic trunk format", "01335117990", "+8801335117990"},
		{"bd trunk zero after country code", "+880 0 1335 117990", "+8801335117990"},
		{"bd double prefixed with extra digit", "0088013351179900", "+8801335117990"},
		{"bd already canonical", "+8801335117990", "+8801335117990"},
		{"spreadsheet quote", "'+8801335117990", "+8801335117990"},
		{"empty", "", ""},
		{"letters only", "anonymous", ""},
		{"too short", "+12345", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.raw); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestEqual_FormattingVariants(t *testing.T) {
	if !Equal("+880 1335-117990", "0088013351179900") {
		t.Fatalf("expected variants to dial identically")
	}
	if Equal("", "") {
		t.Fatalf("empty keys must never compare equal")
	}
}

func TestProperty_NormalizeIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.StringMatching(`[0-9+ ()\-.a-z']{0,24}`).Draw(rt, "raw")
		once := Normalize(raw)
		if twice := Normalize(once); twice != once {
			rt.Fatalf("Normalize not idempotent for %q: %q then %q", raw, once, twice)
		}
	})
}

func TestProperty_FormattingDoesNotChangeKey(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		digits := rapid.StringMatching(`[1-9][0-9]{9,12}`).Draw(rt, "digits")
		sep := rapid.SampledFrom([]string{" ", "-", ".", "(", ")"}).Draw(rt, "sep")

		var formatted []byte
		formatted = append(formatted, '+')
		for i := 0; i < len(digits); i++ {
			formatted = append(formatted, digits[i])
			if i%3 == 2 {
				formatted = append(formatted, sep...)
			}
		}
		if a, b := Normalize("+"+digits), Normalize(string(formatted)); a != b {
			rt.Fatalf("formatting changed key: %q vs %q", a, b)
		}
	})
}

func TestProperty_OutputShape(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		out := Normalize(rapid.String().Draw(rt, "raw"))
		if out == "" {
			return
		}
		if out[0] != '+' {
			rt.Fatalf("missing leading plus: %q", out)
		}
		for _, r := range out[1:] {
			if r < '0' || r > '9' {
				rt.Fatalf("non-digit in key: %q", out)
			}
		}
	})
}
