package vaultstore

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/vault/pkg/memory"
	"github.com/cuemby/vault/pkg/vaulterr"
)

// KeySize is the XChaCha20-Poly1305 key length used for every vault key.
const KeySize = 32

// Key is secret key material held inside a NonContiguous memory; it is
// never exposed as plaintext outside a Buffer borrow.
type Key struct {
	nc *memory.NonContiguous
}

// NewKey generates a fresh random key in a NonContiguous memory.
func NewKey() (*Key, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "vaultstore.key.new", err)
	}
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()
	nc, err := memory.NewNonContiguous(raw, memory.RamOnly, "")
	if err != nil {
		return nil, err
	}
	return &Key{nc: nc}, nil
}

// Borrow hands f the key's raw bytes for the duration of the call.
func (k *Key) Borrow(f func([]byte) error) error {
	buf, err := k.nc.Unlock()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return buf.Borrow(f)
}

// Destroy zeroizes the key's shards.
func (k *Key) Destroy() {
	k.nc.Destroy()
}

// KeyStore is the per-client mapping VaultId → Key. Take and Insert must be
// balanced: a vault's key can be taken out for use and must be inserted back
// before another Take succeeds.
type KeyStore struct {
	mu   sync.Mutex
	keys map[VaultId]*Key
	out  map[VaultId]bool
}

// NewKeyStore returns an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[VaultId]*Key), out: make(map[VaultId]bool)}
}

// Create generates a fresh key for vid. Fails if vid already has a key.
func (ks *KeyStore) Create(vid VaultId) (*Key, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, exists := ks.keys[vid]; exists {
		return nil, vaulterr.New(vaulterr.KindKeyAlreadyExists, "vaultstore.keystore.create",
			fmt.Errorf("vault %x already has a key", vid))
	}
	key, err := NewKey()
	if err != nil {
		return nil, err
	}
	ks.keys[vid] = key
	return key, nil
}

// Take marks vid's key as taken and returns it for exclusive use. Only
// Insert clears the mark; destroying the returned key leaves vid taken, so
// Take keeps failing for it.
func (ks *KeyStore) Take(vid VaultId) (*Key, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.out[vid] {
		return nil, vaulterr.New(vaulterr.KindLockUnavailable, "vaultstore.keystore.take",
			fmt.Errorf("vault %x key already taken", vid))
	}
	key, exists := ks.keys[vid]
	if !exists {
		return nil, vaulterr.New(vaulterr.KindKeyMissing, "vaultstore.keystore.take",
			fmt.Errorf("vault %x has no key", vid))
	}
	ks.out[vid] = true
	return key, nil
}

// Insert returns a previously-Taken key back into the store.
func (ks *KeyStore) Insert(vid VaultId, key *Key) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if !ks.out[vid] {
		return vaulterr.New(vaulterr.KindConfigurationNotAllowed, "vaultstore.keystore.insert",
			fmt.Errorf("vault %x key was not taken", vid))
	}
	ks.keys[vid] = key
	ks.out[vid] = false
	return nil
}

// Contains reports whether vid has a registered key (taken or not).
func (ks *KeyStore) Contains(vid VaultId) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	_, exists := ks.keys[vid]
	return exists
}

// ExportRaw returns the raw key bytes for every vault id in the store, for
// serialization into a client's snapshot state. Callers must zero the
// returned bytes once they are done (typically immediately after AEAD-
// sealing them under a snapshot inner key).
func (ks *KeyStore) ExportRaw() (map[VaultId][]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	out := make(map[VaultId][]byte, len(ks.keys))
	for vid, key := range ks.keys {
		var raw []byte
		err := key.Borrow(func(b []byte) error {
			raw = append([]byte(nil), b...)
			return nil
		})
		if err != nil {
			for _, b := range out {
				zeroSlice(b)
			}
			return nil, err
		}
		out[vid] = raw
	}
	return out, nil
}

// ImportRaw rebuilds a KeyStore from previously-exported raw key bytes,
// e.g. after decrypting a snapshot's per-client state. It zeroes raw as it
// consumes it.
func ImportRaw(raw map[VaultId][]byte) (*KeyStore, error) {
	ks := NewKeyStore()
	for vid, b := range raw {
		nc, err := memory.NewNonContiguous(b, memory.RamOnly, "")
		zeroSlice(b)
		if err != nil {
			return nil, err
		}
		ks.keys[vid] = &Key{nc: nc}
	}
	return ks, nil
}

// Use takes vid's key, hands it to f, and guarantees it is inserted back
// afterward regardless of whether f succeeds, keeping Take/Insert balanced
// without spreading that bookkeeping across call sites.
func (ks *KeyStore) Use(vid VaultId, f func(*Key) error) error {
	key, err := ks.Take(vid)
	if err != nil {
		return err
	}
	ferr := f(key)
	if insErr := ks.Insert(vid, key); insErr != nil && ferr == nil {
		ferr = insErr
	}
	return ferr
}
