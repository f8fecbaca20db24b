package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// AccessKeyLength is the full length of a fiscal access key, including
// the trailing check digit.
const AccessKeyLength = 44

// accessKeyWeights is the repeating weight cycle applied left to right
// across the 43-digit base when computing the mod-11 check digit.
var accessKeyWeights = []int{4, 3, 2, 9, 8, 7, 6, 5}

// AccessKeyParams carries the identifying fields encoded into a fiscal
// access key. TaxID is the issuer's 14-digit registration number; UF,
// DocModel and EmissionType come from the tenant's fiscal configuration.
type AccessKeyParams struct {
	UF           int       `json:"uf"`
	IssuedAt     time.Time `json:"issued_at"`
	TaxID        string    `json:"tax_id"`
	DocModel     int       `json:"doc_model"`
	Series       int       `json:"series"`
	Number       int64     `json:"number"`
	EmissionType int       `json:"emission_type"`
	RandomCode   int64     `json:"random_code"`
}

// GenerateAccessKey builds a self-verifying 44-digit fiscal access key:
// uf(2) yearMonth(4) taxId(14) model(2) series(3) number(9) emission(1)
// random(8) check(1). When params.RandomCode is negative a cryptographic
// random code is drawn, so two keys for the same document never collide.
func GenerateAccessKey(params AccessKeyParams) (string, error) {
	taxID := DigitsOnly(params.TaxID)
	if len(taxID) != 14 {
		return "", fmt.Errorf("tax id must have 14 digits, got %d", len(taxID))
	}
	if params.UF < 11 || params.UF > 53 {
		return "", fmt.Errorf("invalid uf code %d", params.UF)
	}
	if params.Series < 0 || params.Series > 999 {
		return "", fmt.Errorf("series %d out of range", params.Series)
	}
	if params.Number < 1 || params.Number > 999999999 {
		return "", fmt.Errorf("document number %d out of range", params.Number)
	}
	if params.EmissionType < 1 || params.EmissionType > 9 {
		return "", fmt.Errorf("invalid emission type %d", params.EmissionType)
	}

	random := params.RandomCode
	if random < 0 {
		drawn, err := rand.Int(rand.Reader, big.NewInt(100000000))
		if err != nil {
			return "", err
		}
		random = drawn.Int64()
	}
	if random > 99999999 {
		return "", fmt.Errorf("random code %d out of range", random)
	}

	issued := params.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	base := fmt.Sprintf("%02d%02d%02d%s%02d%03d%09d%d%08d",
		params.UF,
		issued.Year()%100,
		int(issued.Month()),
		taxID,
		params.DocModel,
		params.Series,
		params.Number,
		params.EmissionType,
		random,
	)
	if len(base) != AccessKeyLength-1 {
		return "", fmt.Errorf("malformed key base: %d digits", len(base))
	}

	check, err := ComputeCheckDigit(base)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s%d", base, check)

	// A freshly generated key failing its own verification means the
	// checksum arithmetic is corrupted. Refuse to hand it out.
	if err := ValidateAccessKey(key); err != nil {
		return "", fmt.Errorf("generated key failed self-verification: %w", err)
	}
	return key, nil
}

// ComputeCheckDigit computes the mod-11 check digit over a 43-digit key
// base. Remainders below 2 map to digit 0, any other remainder r maps
// to 11-r, so the result is always a single digit.
func ComputeCheckDigit(base string) (int, error) {
	if len(base) != AccessKeyLength-1 {
		return 0, fmt.Errorf("key base must have %d digits, got %d", AccessKeyLength-1, len(base))
	}
	sum := 0
	for i, r := range base {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("key base has non-digit at position %d", i)
		}
		sum += int(r-'0') * accessKeyWeights[i%len(accessKeyWeights)]
	}
	remainder := sum % 11
	if remainder < 2 {
		return 0, nil
	}
	return 11 - remainder, nil
}

// ValidateAccessKey checks that key is 44 ASCII digits whose final digit
// matches the checksum recomputed from the first 43.
func ValidateAccessKey(key string) error {
	if len(key) != AccessKeyLength {
		return fmt.Errorf("access key must have %d digits, got %d", AccessKeyLength, len(key))
	}
	base, last := key[:AccessKeyLength-1], key[AccessKeyLength-1]
	if last < '0' || last > '9' {
		return fmt.Errorf("access key has non-digit check position")
	}
	want, err := ComputeCheckDigit(base)
	if err != nil {
		return err
	}
	if got := int(last - '0'); got != want {
		return fmt.Errorf("check digit mismatch: key carries %d, recomputed %d", got, want)
	}
	return nil
}
