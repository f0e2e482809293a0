package game

import "testing"

func verdictsEqual(a, b []Verdict) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluate_DuplicateLetters(t *testing.T) {
	// classic duplicate-letter case: the second E in ERASE can still match
	// because SPEED holds two Es, but repeats never over-count
	got := Evaluate("ERASE", "SPEED")
	want := []Verdict{VerdictPresent, VerdictAbsent, VerdictAbsent, VerdictPresent, VerdictPresent}
	if !verdictsEqual(got, want) {
		t.Fatalf("Evaluate(ERASE, SPEED)=%v want %v", got, want)
	}
}

func TestEvaluate_SinglePresent(t *testing.T) {
	got := Evaluate("CRISP", "PLANT")
	want := []Verdict{VerdictAbsent, VerdictAbsent, VerdictAbsent, VerdictAbsent, VerdictPresent}
	if !verdictsEqual(got, want) {
		t.Fatalf("Evaluate(CRISP, PLANT)=%v want %v", got, want)
	}
}

func TestEvaluate_ExactMatch(t *testing.T) {
	got := Evaluate("PLANT", "PLANT")
	for i, v := range got {
		if v != VerdictCorrect {
			t.Fatalf("position %d = %s want correct", i, v)
		}
	}
}

func TestEvaluate_NoMatch(t *testing.T) {
	got := Evaluate("QUICK", "PLANT")
	for i, v := range got {
		if v != VerdictAbsent {
			t.Fatalf("position %d = %s want absent", i, v)
		}
	}
}

func TestEvaluate_ExactConsumesBeforePresent(t *testing.T) {
	// guess repeats a letter that occurs once in the target and one copy is
	// an exact match: the exact match wins, the other copy is absent
	got := Evaluate("LLAMA", "LABEL")
	want := []Verdict{VerdictCorrect, VerdictPresent, VerdictPresent, VerdictAbsent, VerdictAbsent}
	if !verdictsEqual(got, want) {
		t.Fatalf("Evaluate(LLAMA, LABEL)=%v want %v", got, want)
	}
}
