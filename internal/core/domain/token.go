package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const publicTokenBytes = 16

// NewPublicToken issues the opaque capability string granting
// unauthenticated read access to one document. Once stored on a
// document it is permanent.
func NewPublicToken() (string, error) {
	buf := make([]byte, publicTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate public token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
