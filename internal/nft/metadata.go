package nft

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mr-tron/base58"
)

// MaxQualityScore is the best possible analysis quality score.
const MaxQualityScore = 100

// cidV0Prefix is the multihash header of a sha2-256 digest: code 0x12, length 32.
var cidV0Prefix = [2]byte{0x12, 0x20}

var textPolicy = bluemonday.StrictPolicy()

// Metadata describes a genomic discovery being minted.
type Metadata struct {
	TokenURI     string
	GeneName     string
	Description  string
	IPFSHash     string
	QualityScore uint8
}

// normalize sanitizes free text and checks required fields.
func (m Metadata) normalize() (Metadata, error) {
	out := Metadata{
		TokenURI:     strings.TrimSpace(m.TokenURI),
		GeneName:     sanitize(m.GeneName),
		Description:  sanitize(m.Description),
		IPFSHash:     strings.TrimPrefix(strings.TrimSpace(m.IPFSHash), "ipfs://"),
		QualityScore: m.QualityScore,
	}
	if out.GeneName == "" {
		return out, fmt.Errorf("%w: gene name", ErrEmptyField)
	}
	if err := ValidateCID(out.IPFSHash); err != nil {
		return out, err
	}
	if out.TokenURI == "" {
		out.TokenURI = "ipfs://" + out.IPFSHash
	}
	if out.QualityScore > MaxQualityScore {
		return out, ErrInvalidQualityScore
	}
	return out, nil
}

// ValidateCID checks that s is a base58btc CIDv0 ("Qm...") naming a sha2-256 digest.
func ValidateCID(s string) error {
	if s == "" {
		return fmt.Errorf("%w: ipfs hash", ErrEmptyField)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCID, err)
	}
	if len(raw) != 34 || raw[0] != cidV0Prefix[0] || raw[1] != cidV0Prefix[1] {
		return ErrInvalidCID
	}
	return nil
}

// sanitize drops markup. The policy escapes the text it keeps, which is
// undone so stored fields hold plain text.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
