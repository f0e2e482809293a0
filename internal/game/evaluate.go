package game

import "example.com/wordmint/internal/wordlist"

// Verdict classifies a single guess position.
type Verdict string

const (
	VerdictCorrect Verdict = "correct"
	VerdictPresent Verdict = "present"
	VerdictAbsent  Verdict = "absent"
)

// Evaluate compares guess to target position by position under the standard
// duplicate-letter rules. Two passes: exact matches first, consuming the
// matched target letters, then remaining guess letters are matched against
// the leftover target pool so a repeated guess letter is marked present at
// most as many times as it remains unconsumed in the target.
//
// Both strings must be wordlist.WordLength uppercase letters; the caller
// validates shape before calling.
func Evaluate(guess, target string) []Verdict {
	out := make([]Verdict, wordlist.WordLength)

	var exact [wordlist.WordLength]bool
	var pool [26]int

	for i := 0; i < wordlist.WordLength; i++ {
		if guess[i] == target[i] {
			out[i] = VerdictCorrect
			exact[i] = true
		} else {
			pool[target[i]-'A']++
		}
	}

	for i := 0; i < wordlist.WordLength; i++ {
		if exact[i] {
			continue
		}
		c := guess[i] - 'A'
		if pool[c] > 0 {
			out[i] = VerdictPresent
			pool[c]--
		} else {
			out[i] = VerdictAbsent
		}
	}

	return out
}
