package matching

import "testing"

func FuzzScoreDoesNotPanic(f *testing.F) {
	f.Add("Panadol 500mg", "PANADOL 500 MG")
	f.Add("", "x")
	f.Add("ÁÉÍ 12a3", "aei 12 a 3")
	f.Add("́́", "--")

	f.Fuzz(func(t *testing.T, a, b string) {
		for _, p := range []Policy{Strict, Ranked, NumericAware} {
			if s := Score(a, b, p); s < 0 {
				t.Fatalf("%s produced negative score %v", p, s)
			}
		}
		if Score(a, b, Strict) != Score(b, a, Strict) {
			t.Fatalf("strict not symmetric for %q / %q", a, b)
		}
		if Score(a, b, Ranked) != Score(b, a, Ranked) {
			t.Fatalf("ranked not symmetric for %q / %q", a, b)
		}
		if Key(a) != "" && Score(a, a, Strict) != 1 {
			t.Fatalf("strict self score for %q is not 1", a)
		}
	})
}
