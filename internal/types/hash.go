package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainType     = "lockdown/type/v1"
	DomainRelation = "lockdown/relation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TypeID computes the content-addressed identity of t from its canonical
// descriptor. Structurally identical types share an ID regardless of
// pointer identity.
func TypeID(t Type) (string, error) {
	canonical, err := MarshalCanonical(Describe(t))
	if err != nil {
		return "", fmt.Errorf("TypeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainType, canonical), nil
}

// RelationID identifies the question "is candidate copyable into target".
func RelationID(targetID, candidateID string) string {
	return hashWithDomain(DomainRelation, []byte(targetID+"\x00"+candidateID))
}

// MustTypeID is like TypeID but panics on error.
// Use only in tests or when t is known to be describable.
func MustTypeID(t Type) string {
	id, err := TypeID(t)
	if err != nil {
		panic(err)
	}
	return id
}
