package matching

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"  Amoxicilina   500mg ", "amoxicilina 500mg"},
		{"DIPIRONA SÓDICA", "dipirona sodica"},
		{"Ácido\tAcetilsalicílico\n100", "acido acetilsalicilico 100"},
		{"Loção Hidratante", "locao hidratante"},
		{"", ""},
		{"   \t ", ""},
	} {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokenizeSplitsLetterDigitBoundaries(t *testing.T) {
	got := Tokenize(Normalize("Panadol 500mg/5ml, x2"))
	want := []string{"panadol", "500", "mg", "5", "ml", "x", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize got %v, want %v", got, want)
	}
	if got := Tokenize(""); len(got) != 0 {
		t.Fatalf("expected no tokens for empty input, got %v", got)
	}
}

func TestKeywordsDropsShortTokensAndStopwords(t *testing.T) {
	got := Keywords("Dipirona de 500 mg para dor com febre, dipirona")
	want := []string{"dipirona", "500", "dor", "febre"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Keywords got %v, want %v", got, want)
	}
}

func TestKeyIgnoresSpacingAroundDosage(t *testing.T) {
	if Key("AMOXICILINA 500MG") != Key("Amoxicilina 500 mg") {
		t.Fatalf("keys differ: %q vs %q", Key("AMOXICILINA 500MG"), Key("Amoxicilina 500 mg"))
	}
}
