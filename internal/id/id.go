// Package id generates prefixed, URL-safe document identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for persisted documents.
const (
	PrefixReview    = "rev"
	PrefixOwnership = "own"
	PrefixDesire    = "des"
	PrefixFavorite  = "fav"
	PrefixContact   = "con"
	PrefixExchange  = "exc"
)

// Generate creates a prefixed unique ID using NanoID, e.g. "exc-V1StGXR8_Z5jdHi6B-myT".
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}
