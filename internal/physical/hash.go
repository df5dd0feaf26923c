package physical

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainArtifact = "tracept/artifact/v1"
	DomainSpec     = "tracept/spec/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content-addressed identity of a raw logical spec
// document. The hash is over the document bytes as transported, so
// formatting changes produce a new identity on purpose: the stored
// artifact maps back to exactly the document that produced it.
func SpecHash(doc []byte) string {
	return hashWithDomain(DomainSpec, doc)
}

// ArtifactHash computes the content-addressed identity of a physical
// program. Two compiles of the same deployment against the same resolver
// facts hash identically.
func ArtifactHash(p *Program) (string, error) {
	data, err := MarshalCanonical(p)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainArtifact, data), nil
}
