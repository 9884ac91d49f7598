// Package id generates short prefixed identifiers for log correlation.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet avoids look-alike characters so ids can be read back from a log line.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// Generate returns prefix-xxxxxxxxxx using a 10-character lowercase nanoid.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, 10)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
