package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent      = "cadence/event/v1"
	DomainGeneration = "cadence/generation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of a history event.
//
// The payload is deliberately excluded: an event slot is identified by its
// position in a generation, so a second writer racing for the same slot
// collides on the id instead of forking the history.
func EventID(chainID string, generation int64, seq int64, kind string) (string, error) {
	canonical, err := MarshalCanonical(Object{
		"chain_id":   chainID,
		"generation": generation,
		"seq":        seq,
		"kind":       kind,
	})
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// GenerationDigest hashes a generation input so a replayed continuation can
// be checked against the successor that was committed the first time.
func GenerationDigest(input Object) (string, error) {
	canonical, err := MarshalCanonical(input)
	if err != nil {
		return "", fmt.Errorf("GenerationDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGeneration, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(chainID string, generation int64, seq int64, kind string) string {
	id, err := EventID(chainID, generation, seq, kind)
	if err != nil {
		panic(err)
	}
	return id
}
