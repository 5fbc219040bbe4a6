package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Domain prefixes for content digests. The version suffix allows the
// hashed form to change without colliding with old digests.
const (
	DomainClass  = "classweave/class/v1"
	DomainReport = "classweave/report/v1"
	DomainConfig = "classweave/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ClassDigest identifies class file bytes.
func ClassDigest(data []byte) string {
	return hashWithDomain(DomainClass, data)
}

// ConfigDigest identifies the settings that influence a class's output.
// v must be canonically marshalable.
func ConfigDigest(v map[string]any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ConfigDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// Digest identifies a report's content. The run ID and timestamps are
// excluded, so two runs over the same inputs with the same settings share
// a digest.
func Digest(r *Report) (string, error) {
	canonical, err := MarshalCanonical(r.canonical())
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainReport, canonical), nil
}

// Fingerprint is a fast, non-cryptographic key for an input under a given
// configuration. It is only used to find cached results, never as an
// identity.
func Fingerprint(data []byte, configDigest string) string {
	h := xxh3.New()
	h.WriteString(configDigest)
	h.Write([]byte{0x00})
	h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}
