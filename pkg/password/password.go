package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor. Tests lower it.
var Cost = bcrypt.DefaultCost

// Hash returns the bcrypt hash of plain with a per-hash salt.
func Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify compares in constant time; any malformed hash is a mismatch.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
