/*
Package vaultstore implements the keyed, record-addressed vault: Location
resolution, the Record wire shape, the per-vault KeyStore, and the Vault
itself with its guarded-read, write, revoke, gc, and exec operations.
*/
package vaultstore

import (
	"golang.org/x/crypto/blake2b"
)

// idSize is the fixed length of every derived identifier (VaultId,
// RecordId, ClientId): 24 bytes, per spec.
const idSize = 24

// VaultId identifies a vault within a client, derived from a caller-supplied
// vault path.
type VaultId [idSize]byte

// RecordId identifies a record within a vault, derived from a caller-supplied
// record path.
type RecordId [idSize]byte

// ClientId identifies a client, derived the same way as VaultId/RecordId:
// the first 24 bytes of BLAKE2b-256 of the caller-supplied client path.
type ClientId [idSize]byte

// Location is the caller-facing (vault_path, record_path) pair. Resolution
// to (VaultId, RecordId) is a pure function of the two byte strings.
type Location struct {
	VaultPath  []byte
	RecordPath []byte
}

// NewLocation builds a Location from path strings.
func NewLocation(vaultPath, recordPath string) Location {
	return Location{VaultPath: []byte(vaultPath), RecordPath: []byte(recordPath)}
}

// Resolve derives the (VaultId, RecordId) pair for this Location.
func (l Location) Resolve() (VaultId, RecordId) {
	return H24(l.VaultPath), RecordId(H24(l.RecordPath))
}

// H24 is BLAKE2b-256 truncated to 24 bytes, the fixed derivation rule shared
// by VaultId, RecordId, and ClientId.
func H24(path []byte) VaultId {
	sum := blake2b.Sum256(path)
	var out VaultId
	copy(out[:], sum[:idSize])
	return out
}

// DeriveClientId derives a ClientId from a caller-supplied path using the
// same H24 rule as VaultId/RecordId.
func DeriveClientId(path []byte) ClientId {
	return ClientId(H24(path))
}

// RecordHint is caller metadata carried alongside a record. It has no
// cryptographic role and is never authenticated data for the record's AEAD.
type RecordHint [24]byte

// NewRecordHint truncates or zero-pads s into a RecordHint.
func NewRecordHint(s string) RecordHint {
	var h RecordHint
	copy(h[:], s)
	return h
}

func (h RecordHint) String() string {
	n := len(h)
	for n > 0 && h[n-1] == 0 {
		n--
	}
	return string(h[:n])
}
