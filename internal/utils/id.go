package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// GenerateSecureToken creates a cryptographically secure random token,
// hex-encoded. length is the number of random bytes.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewFileID generates a file identifier. Millisecond timestamp plus a random
// suffix keeps ids unique across every document ever written for a wallet.
func NewFileID(now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("file_%d_%s", now.UnixMilli(), hex.EncodeToString(suffix))
}

var fileIDPattern = regexp.MustCompile(`^file_\d{13}`)

// ValidFileID reports whether id looks like a generated file identifier.
func ValidFileID(id string) bool {
	return fileIDPattern.MatchString(id)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// SanitizeFilename replaces every character outside the safe set with an
// underscore, matching the names already stored in pinned metadata.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
