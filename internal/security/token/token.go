// Package token genera secretos opacos: tokens de sesión y API keys.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// MinBytes entropía mínima aceptada (128 bits).
const MinBytes = 16

// DefaultBytes entropía por defecto (256 bits).
const DefaultBytes = 32

// APIKeyPrefix prefijo visible de las API keys de administradores.
const APIKeyPrefix = "krapi_"

// ErrTooShort pedido por debajo de MinBytes.
var ErrTooShort = errors.New("token: fewer than 16 random bytes requested")

// Generate devuelve nBytes aleatorios en base64url sin padding.
func Generate(nBytes int) (string, error) {
	if nBytes < MinBytes {
		return "", ErrTooShort
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// APIKey genera una API key con prefijo reconocible.
func APIKey() (string, error) {
	s, err := Generate(DefaultBytes)
	if err != nil {
		return "", err
	}
	return APIKeyPrefix + s, nil
}
