package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHash is a decoded argon2id hash in the PHC string format
// $argon2id$v=19$m=...,t=...,p=...$salt$key.
type PasswordHash struct {
	Params Argon2idParams
	Salt   []byte
	Key    []byte
}

// ParsePasswordHash decodes a PHC formatted argon2id hash.
func ParsePasswordHash(encoded string) (PasswordHash, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return PasswordHash{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}
	if version != argon2.Version {
		return PasswordHash{}, ErrIncompatiblePasswordVersion
	}

	var hash PasswordHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &hash.Params.Memory, &hash.Params.Iterations, &hash.Params.Parallelism); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: %v", ErrInvalidPasswordHash, err)
	}

	var err error
	if hash.Salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: salt: %v", ErrInvalidPasswordHash, err)
	}
	if hash.Key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return PasswordHash{}, fmt.Errorf("%w: key: %v", ErrInvalidPasswordHash, err)
	}
	if len(hash.Salt) == 0 || len(hash.Key) == 0 {
		return PasswordHash{}, ErrInvalidPasswordHash
	}
	hash.Params.SaltLength = uint32(len(hash.Salt))
	hash.Params.KeyLength = uint32(len(hash.Key))
	return hash, nil
}

// String encodes the hash in PHC format.
func (h PasswordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Params.Memory, h.Params.Iterations, h.Params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key),
	)
}

// Matches reports whether password derives the stored key.
func (h PasswordHash) Matches(password string) bool {
	derived := argon2.IDKey([]byte(password), h.Salt, h.Params.Iterations, h.Params.Memory, h.Params.Parallelism, h.Params.KeyLength)
	return subtle.ConstantTimeCompare(h.Key, derived) == 1
}

func CreatePasswordHash(password string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := PasswordHash{
		Params: params,
		Salt:   salt,
		Key:    argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength),
	}
	return hash.String(), nil
}

func VerifyPassword(hashedPassword, password string) error {
	hash, err := ParsePasswordHash(hashedPassword)
	if err != nil {
		return err
	}
	if !hash.Matches(password) {
		return ErrInvalidCredentials
	}
	return nil
}
