// Package fingerprint derives the verification hash that binds an approval's
// key facts together. It is a tamper-evidence fingerprint for the public
// verification page, not an authentication mechanism.
package fingerprint

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Separator joins the hashed parts. Parts are not escaped, so callers must
// not pass values that contain it when distinct inputs have to stay distinct.
const Separator = "|"

// Salt is the fixed last part of every verification hash. Changing it
// invalidates every hash already printed on approval documents.
const Salt = "PROVIDENCIA-VERIFY-V1"

// Size is the length in hex characters of a rendered hash
const Size = 32

// verificationDomainKey separates verification hashes from any other BLAKE3
// use. ASCII of the domain name, zero-padded to 32 bytes.
var verificationDomainKey = [32]byte{
	'p', 'r', 'o', 'v', 'i', 'd', 'e', 'n', 'c', 'i', 'a', '.', 'a', 'p', 'p', 'r',
	'o', 'v', 'a', 'l', '.', 'v', 'e', 'r', 'i', 'f', 'y', 0, 0, 0, 0, 0,
}

// Hash returns a deterministic fingerprint of the ordered parts as Size
// upper-case hex characters.
func Hash(parts ...string) string {
	hasher, err := blake3.NewKeyed(verificationDomainKey[:])
	if err != nil {
		// Only returned for a key that is not 32 bytes long
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(strings.Join(parts, Separator)))
	sum := hasher.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum[:Size/2]))
}

// VerificationHash computes the hash printed on an approved document.
// Field order and the 2-decimal rendering of totalValue are part of the
// contract: a hash computed today must verify forever.
func VerificationHash(approvalID, orderID string, totalValue float64, companyID, signatureID string) string {
	return Hash(
		approvalID,
		orderID,
		strconv.FormatFloat(totalValue, 'f', 2, 64),
		companyID,
		signatureID,
		Salt,
	)
}

// Normalize trims and upper-cases a user-supplied hash so it can be compared
// with stored values
func Normalize(hash string) string {
	return strings.ToUpper(strings.TrimSpace(hash))
}
