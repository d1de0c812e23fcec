package websession

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TokenLength is the length of session ids and CSRF tokens.
const TokenLength = 40

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// generateToken is a variable so tests can simulate an entropy failure.
var generateToken = func() (string, error) {
	return gonanoid.Generate(tokenAlphabet, TokenLength)
}

// validTokenChars is a lookup table for [0-9A-Za-z].
var validTokenChars = [256]bool{}

func init() {
	for i := 0; i < len(validTokenChars); i++ {
		c := byte(i)
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			validTokenChars[i] = true
		}
	}
}

// IsValidToken reports whether token is exactly 40 alphanumeric characters.
func IsValidToken(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for i := 0; i < TokenLength; i++ {
		if !validTokenChars[token[i]] {
			return false
		}
	}
	return true
}

// shortID trims a token for log fields.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
