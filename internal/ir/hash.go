package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep message and view hashes in separate spaces.
// The version suffix allows a future change of encoding.
const (
	DomainMessage = "weft/message/v1"
	DomainView    = "weft/view/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MessageHash returns the content hash of an encoded message.
func MessageHash(msg Object) (string, error) {
	canonical, err := MarshalCanonical(msg)
	if err != nil {
		return "", fmt.Errorf("message hash: %w", err)
	}
	return hashWithDomain(DomainMessage, canonical), nil
}

// ViewHash returns the content hash of an encoded view tree.
func ViewHash(view Object) (string, error) {
	canonical, err := MarshalCanonical(view)
	if err != nil {
		return "", fmt.Errorf("view hash: %w", err)
	}
	return hashWithDomain(DomainView, canonical), nil
}

// MustMessageHash is like MessageHash but panics on error.
// Use only in tests or when the message is known to be valid.
func MustMessageHash(msg Object) string {
	h, err := MessageHash(msg)
	if err != nil {
		panic(err)
	}
	return h
}
