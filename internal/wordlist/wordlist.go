package wordlist

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
)

// WordLength is the fixed length of every target word and guess.
const WordLength = 5

//go:embed words.txt
var embedded embed.FS

// Load returns the target-word corpus. If path is empty the embedded corpus
// is used. A missing or empty corpus is a startup error, never a per-call
// condition.
func Load(path string) ([]string, error) {
	var data []byte
	var err error

	if path == "" {
		data, err = embedded.ReadFile("words.txt")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("wordlist: read corpus: %w", err)
	}

	var words []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		w := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		if !Valid(w) {
			return nil, fmt.Errorf("wordlist: invalid entry %q (want %d letters A-Z)", w, WordLength)
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("wordlist: scan corpus: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("wordlist: corpus is empty")
	}
	return words, nil
}

// Valid reports whether s is a well-formed word: exactly WordLength
// uppercase ASCII letters. No dictionary check is performed.
func Valid(s string) bool {
	if len(s) != WordLength {
		return false
	}
	for i := 0; i < WordLength; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
