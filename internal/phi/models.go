package phi

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	id "sentra/pkg/domain"
)

// Algorithm identifies the AEAD construction used for an envelope. Stored in
// the envelope so future algorithm migrations can dispatch on it.
const Algorithm = "chacha20poly1305"

// DataType classifies the PHI being handled; access rules are keyed by it.
type DataType string

const (
	DataTypeDemographics DataType = "demographics"
	DataTypeClinical     DataType = "clinical"
	DataTypeClaims       DataType = "claims"
	DataTypeBilling      DataType = "billing"
)

// Envelope is a self-describing, integrity-checked ciphertext. Immutable
// once created. The nonce is prepended to Ciphertext.
type Envelope struct {
	Ciphertext      []byte    `json:"ciphertext"`
	KeyID           id.KeyID  `json:"key_id"`
	Algorithm       string    `json:"algorithm"`
	CreatedAt       time.Time `json:"created_at"`
	IntegrityDigest []byte    `json:"integrity_digest"`
}

// Digest computes the tamper-evidence hash over ciphertext, key ID and
// creation time. Checked before any decryption is attempted so a tampered
// envelope is rejected without touching key material.
func Digest(ciphertext []byte, keyID id.KeyID, createdAt time.Time) []byte {
	h := sha256.New()
	h.Write(ciphertext)
	h.Write([]byte(keyID.String()))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt.UnixNano()))
	h.Write(ts[:])
	return h.Sum(nil)
}

// AccessRequest carries the identity and intent of an encrypt/decrypt call.
type AccessRequest struct {
	ActorID  id.ActorID
	DataType DataType
	Resource string
}
