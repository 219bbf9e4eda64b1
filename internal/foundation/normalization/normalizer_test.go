package normalization

import (
	"testing"
)

type testEnum string

const (
	testEnumAlpha testEnum = "alpha"
	testEnumBeta  testEnum = "beta"
)

func newTestNormalizer() *Normalizer[testEnum] {
	return NewNormalizer("test enum", map[string]testEnum{
		"alpha": testEnumAlpha,
		"BETA":  testEnumBeta,
	}, testEnumAlpha)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name     string
		input    string
		expected testEnum
	}{
		{"exact match", "alpha", testEnumAlpha},
		{"case insensitive", "Beta", testEnumBeta},
		{"with spaces", "  beta  ", testEnumBeta},
		{"invalid input", "gamma", testEnumAlpha},
		{"empty", "", testEnumAlpha},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_Parse(t *testing.T) {
	n := newTestNormalizer()

	if v, err := n.Parse(" BETA "); err != nil || v != testEnumBeta {
		t.Fatalf("Parse(valid) = %v, %v", v, err)
	}
	if v, err := n.Parse(""); err != nil || v != testEnumAlpha {
		t.Fatalf("Parse(empty) = %v, %v", v, err)
	}
	_, err := n.Parse("gamma")
	if err == nil {
		t.Fatal("expected error for unknown value")
	}
	want := `invalid test enum "gamma", valid options: [alpha beta]`
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestNormalizer_ValidKeysIsCopy(t *testing.T) {
	n := newTestNormalizer()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	if n.ValidKeys()[0] != "alpha" {
		t.Fatal("ValidKeys must return a copy")
	}
}
