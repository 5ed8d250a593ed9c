package service

import "strings"

// The chunker, the prompt-length gate and the response budget accounting must
// all agree on one token count, so they all go through these two helpers.
// Tokens are whitespace-delimited words, which is deterministic and close
// enough for budget purposes.

// CountTokens returns the token count of s.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

// TailTokens returns the last n tokens of s joined by single spaces. When s
// has fewer than n tokens the whole text is returned.
func TailTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[len(fields)-n:], " ")
}
