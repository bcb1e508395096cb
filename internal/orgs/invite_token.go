package orgs

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	InviteTokenPrefix = "fiq_"
	InviteTokenBytes  = 32
)

// GenerateInviteToken returns a new raw token and its SHA-256 digest. Only
// the digest is stored.
func GenerateInviteToken() (token string, hash []byte, err error) {
	raw := make([]byte, InviteTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token = InviteTokenPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return token, HashInviteToken(token), nil
}

func HashInviteToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func ValidateInviteTokenFormat(token string) bool {
	encoded, ok := strings.CutPrefix(token, InviteTokenPrefix)
	if !ok {
		return false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	return err == nil && len(decoded) == InviteTokenBytes
}
