package cache

import (
	"strings"
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	params := map[string]string{"max_results": "5", "lang": "en"}

	a := Fingerprint("quantum computing advances", params)
	b := Fingerprint("quantum computing advances", map[string]string{"lang": "en", "max_results": "5"})

	if a != b {
		t.Errorf("same request produced different fingerprints: %q vs %q", a, b)
	}
}

func TestFingerprint_NormalizesQuery(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{
			name: "surrounding whitespace",
			a:    "  climate change  ",
			b:    "climate change",
			same: true,
		},
		{
			name: "case folding",
			a:    "Climate Change",
			b:    "climate change",
			same: true,
		},
		{
			name: "inner whitespace collapsed",
			a:    "climate   change",
			b:    "climate change",
			same: true,
		},
		{
			name: "different queries",
			a:    "climate change",
			b:    "climate policy",
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := Fingerprint(tt.a, nil)
			fb := Fingerprint(tt.b, nil)
			if (fa == fb) != tt.same {
				t.Errorf("Fingerprint(%q) == Fingerprint(%q) = %v, want %v", tt.a, tt.b, fa == fb, tt.same)
			}
		})
	}
}

func TestFingerprint_ParamsMatter(t *testing.T) {
	a := Fingerprint("query", map[string]string{"max_results": "5"})
	b := Fingerprint("query", map[string]string{"max_results": "10"})

	if a == b {
		t.Error("different params produced the same fingerprint")
	}
}

func TestFingerprint_Format(t *testing.T) {
	fp := Fingerprint("query", nil)
	if !strings.HasPrefix(fp, "rv:") {
		t.Errorf("fingerprint %q missing rv: prefix", fp)
	}
	// 64 hex chars for SHA-256 plus the prefix.
	if len(fp) != 3+64 {
		t.Errorf("fingerprint length = %d, want %d", len(fp), 3+64)
	}
}
