// Package signing implements the canonical-request HMAC signature scheme that
// protects every API call. Client and server must derive byte-identical
// canonical strings, so every rule here is part of the wire contract.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase-hex SHA-256 digest of data.
//
// Hash state is per call; nothing here is shared between requests.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HMACSHA256Hex returns the lowercase-hex HMAC-SHA256 of data under key.
func HMACSHA256Hex(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// equalConstTime compares two hex signatures without leaking timing.
func equalConstTime(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
