package models

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken creates a random opaque token (click hints, one-shot links)
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
