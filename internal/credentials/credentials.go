// Package credentials verifies and hashes user passwords. bcrypt is the
// only scheme used for new hashes; the sha256(password+salt) scheme is kept
// solely to verify records that predate the migration, and such records are
// rehashed on the first successful login.
package credentials

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/fuelgrid/gridauth/internal/models"
)

const DefaultCost = 12

// Hash returns a bcrypt hash of the plaintext password.
func Hash(plain string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify checks a plaintext password against the user's stored credentials.
// It fails closed: an empty password or a record with no usable hash never
// matches. needsRehash is true when the match came from the legacy scheme
// and the caller should persist a bcrypt hash.
func Verify(u *models.User, password string) (ok bool, needsRehash bool) {
	if u == nil || password == "" {
		return false, false
	}

	if u.PasswordHash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
		return err == nil, false
	}

	if u.LegacySalt != "" && u.LegacyHash != "" {
		digest := LegacyDigest(password, u.LegacySalt)
		match := subtle.ConstantTimeCompare([]byte(digest), []byte(u.LegacyHash)) == 1
		return match, match
	}

	return false, false
}

// LegacyDigest computes the pre-migration hex sha256(password+salt) digest.
func LegacyDigest(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}
