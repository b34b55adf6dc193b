// Package util provides environment variable parsing and identifier helpers
// shared across components.
package util

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// GenerateSessionID generates a globally unique session identifier. A session
// id is created once per widget session and is never regenerated.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateLeadID generates a unique lead row identifier with "lead_" prefix.
func GenerateLeadID() string {
	return GenerateRandomID("lead_", 32)
}

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand; these ids are identifiers, not secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}
