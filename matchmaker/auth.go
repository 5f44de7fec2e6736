package matchmaker

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// ErrAuthFailed covers absent, malformed and rejected credentials.
// The HTTP layer maps it to 401 without detail.
var ErrAuthFailed = errors.New("invalid credentials")

// argon2id parameters, PHC-encoded alongside each hash so they can be
// raised later without invalidating stored records.
const (
	argonMemory  = 15000
	argonTime    = 2
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Credentials as presented in an Authorization: Basic header.
type Credentials struct {
	Username string
	Password string
}

// basicCredentials extracts Basic credentials from the request.
func basicCredentials(r *http.Request) (Credentials, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return Credentials{}, ErrAuthFailed
	}
	return Credentials{Username: username, Password: password}, nil
}

// validateCredentials resolves the credentials against the store and
// returns the user's id. Unknown users and wrong passwords are
// indistinguishable to the caller.
func validateCredentials(store *Store, creds Credentials) (uuid.UUID, error) {
	user, err := store.FindUserByName(creds.Username)
	if errors.Is(err, ErrUnknownUser) {
		return uuid.Nil, ErrAuthFailed
	}
	if err != nil {
		return uuid.Nil, err
	}
	if err := verifyPassword(user.Password, creds.Password); err != nil {
		return uuid.Nil, ErrAuthFailed
	}
	return user.UUID, nil
}

// hashPassword derives an argon2id hash and encodes it in PHC string
// format: $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>.
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyPassword checks candidate against a PHC-encoded argon2id hash.
func verifyPassword(encoded, candidate string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return errors.New("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return fmt.Errorf("parsing hash version: %w", err)
	}
	if version != argon2.Version {
		return fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return fmt.Errorf("parsing hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("decoding salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("decoding hash: %w", err)
	}

	key := argon2.IDKey([]byte(candidate), salt, time, memory, threads, uint32(len(expected)))
	if subtle.ConstantTimeCompare(key, expected) != 1 {
		return ErrAuthFailed
	}
	return nil
}
