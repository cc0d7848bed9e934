package utils

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// GenerateSlug produces a URL-safe random token for booking links and poll
// shares. 9 random bytes keep the slug short while staying unguessable.
func GenerateSlug() string {
	b := make([]byte, 9)
	rand.Read(b)
	s := base64.URLEncoding.EncodeToString(b)
	return strings.TrimRight(strings.ToLower(s), "=")
}
