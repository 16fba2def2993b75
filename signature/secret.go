package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// SecretPrefix marks generated signing secrets.
const SecretPrefix = "cursec_"

// GenerateSecret creates a cryptographically random signing secret.
// Format: "cursec_" + 32 bytes hex = 71 characters total.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("catcher: failed to generate random secret: " + err.Error())
	}
	return SecretPrefix + hex.EncodeToString(b)
}
