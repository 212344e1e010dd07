package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Passage is one unit of store knowledge (a policy, FAQ entry, notice).
type Passage struct {
	ID    string
	Title string
	Body  string
	// Tags is the normalized term set of title and body, derived at load.
	Tags []string
}

// PassageID is derived from the title so ids survive reloads.
func PassageID(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:8])
}
