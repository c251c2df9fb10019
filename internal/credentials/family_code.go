package credentials

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// FamilyCodeAlphabet holds uppercase letters and digits without the
// look-alike characters I, L, O, 0 and 1
const FamilyCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// FamilyCodeLength is the number of characters in a join code
const FamilyCodeLength = 6

// GenerateFamilyCode generates a random join code drawn uniformly from FamilyCodeAlphabet.
// Uniqueness is enforced by the families table, not here.
func GenerateFamilyCode() (string, error) {
	code := make([]byte, FamilyCodeLength)
	max := big.NewInt(int64(len(FamilyCodeAlphabet)))

	for i := range code {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = FamilyCodeAlphabet[num.Int64()]
	}

	return string(code), nil
}

// NormalizeFamilyCode uppercases a user-entered code and strips surrounding whitespace
func NormalizeFamilyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
