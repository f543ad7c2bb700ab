package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

const (
	APIKeyPrefix    = "sk_live_"
	apiKeyBytes     = 24
	apiKeyShownHead = len(APIKeyPrefix) + 4
)

// APIKeySecret is a freshly minted key. Only Hash, Prefix and LastFour are
// ever stored.
type APIKeySecret struct {
	Key      string
	Hash     string
	Prefix   string
	LastFour string
}

func NewAPIKey() (*APIKeySecret, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	key := APIKeyPrefix + hex.EncodeToString(buf)
	return &APIKeySecret{
		Key:      key,
		Hash:     HashAPIKey(key),
		Prefix:   key[:apiKeyShownHead],
		LastFour: key[len(key)-4:],
	}, nil
}

func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
