// Package password hashea y verifica contraseñas de administradores.
//
// Los hashes nuevos son argon2id en formato PHC. Verify también acepta bcrypt
// ($2a$/$2b$/$2y$) para hashes importados de instalaciones anteriores.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, SaltLen: 16, KeyLen: 32}

// ErrEmpty contraseña vacía.
var ErrEmpty = errors.New("password: empty")

// Hash devuelve $argon2id$v=19$m=...,t=...,p=...$<salt>$<key> (base64 sin padding).
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	if p.SaltLen == 0 {
		p.SaltLen = 16
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compara plain contra un hash argon2id o bcrypt. Formatos
// desconocidos o corruptos retornan false.
func Verify(plain, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(plain, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
	}
	return false
}

// NeedsRehash indica si el hash no es argon2id con los parámetros dados.
func NeedsRehash(p Params, encoded string) bool {
	ph, err := parseArgon2id(encoded)
	if err != nil {
		return true
	}
	return ph.memory != p.Memory || ph.time != p.Time || ph.parallelism != p.Parallelism
}

type argonHash struct {
	memory, time uint32
	parallelism  uint8
	salt, key    []byte
}

func parseArgon2id(encoded string) (argonHash, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argonHash{}, errors.New("password: not argon2id")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return argonHash{}, errors.New("password: unsupported argon2 version")
	}
	var h argonHash
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return argonHash{}, errors.New("password: malformed params")
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return argonHash{}, err
		}
		switch k {
		case "m":
			h.memory = uint32(n)
		case "t":
			h.time = uint32(n)
		case "p":
			if n > 255 {
				return argonHash{}, errors.New("password: parallelism out of range")
			}
			h.parallelism = uint8(n)
		}
	}
	if h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return argonHash{}, errors.New("password: missing params")
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return argonHash{}, err
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return argonHash{}, err
	}
	if len(h.key) == 0 {
		return argonHash{}, errors.New("password: empty key")
	}
	return h, nil
}

func verifyArgon2id(plain, encoded string) bool {
	h, err := parseArgon2id(encoded)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1
}

// Hasher es la primitiva de hash que consumen los servicios.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
	NeedsRehash(encoded string) bool
}

// Argon2id implementa Hasher con los parámetros dados.
type Argon2id struct{ Params Params }

func (a Argon2id) Hash(plain string) (string, error) { return Hash(a.Params, plain) }
func (a Argon2id) Verify(plain, encoded string) bool { return Verify(plain, encoded) }
func (a Argon2id) NeedsRehash(encoded string) bool { return NeedsRehash(a.Params, encoded) }
