package graphstore

import "testing"

func TestSanitizeRelType(t *testing.T) {
	cases := map[string]string{
		"references":     "REFERENCES",
		"requires-spec":  "REQUIRES_SPEC",
		"  amends  ":     "AMENDS",
		"":                "RELATED_TO",
		"co-occurs.with": "CO_OCCURS_WITH",
	}
	for in, want := range cases {
		if got := sanitizeRelType(in); got != want {
			t.Errorf("sanitizeRelType(%q) = %q, want %q", in, got, want)
		}
	}
}
