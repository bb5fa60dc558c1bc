package vaultstore

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cuemby/vault/pkg/vaulterr"
)

// Vault is a per-client collection of records, all encrypted under a
// per-vault Key. It is not safe for concurrent use by multiple goroutines —
// the module's concurrency model treats each client as single-threaded; see
// pkg/client.
type Vault struct {
	keys *KeyStore
	db   map[VaultId]map[RecordId]*Record
}

// NewVault returns an empty Vault.
func NewVault() *Vault {
	return &Vault{keys: NewKeyStore(), db: make(map[VaultId]map[RecordId]*Record)}
}

// KeyExists reports whether vid already has a registered key.
func (v *Vault) KeyExists(vid VaultId) bool {
	return v.keys.Contains(vid)
}

// CreateKey generates a fresh key for vid. Fails if vid already has one.
func (v *Vault) CreateKey(vid VaultId) error {
	_, err := v.keys.Create(vid)
	return err
}

// Write derives a fresh nonce, AEAD-encrypts plaintext under vid's key, and
// stores the record, overwriting any prior live record at (vid, rid).
func (v *Vault) Write(vid VaultId, rid RecordId, plaintext []byte, hint RecordHint) error {
	return v.keys.Use(vid, func(key *Key) error {
		rec, err := encryptRecord(key, plaintext, hint)
		if err != nil {
			return err
		}
		v.vaultMap(vid)[rid] = rec
		return nil
	})
}

// GetGuard unlocks the record into a plaintext slice and passes it to f; the
// slice is zeroed on return. Fails with KindRecordNotFound if absent or
// tombstoned, KindDecryption if AEAD verification fails.
func (v *Vault) GetGuard(vid VaultId, rid RecordId, f func([]byte) error) error {
	rec, err := v.lookup(vid, rid)
	if err != nil {
		return err
	}
	return v.keys.Use(vid, func(key *Key) error {
		plaintext, err := decryptRecord(key, rec)
		if err != nil {
			return err
		}
		defer zeroSlice(plaintext)
		return f(plaintext)
	})
}

// Exec performs a guarded read of the source record, applies f to produce a
// new secret, and writes it at the destination — all without the plaintext
// leaving this call. Source and destination may share a vault id.
func (v *Vault) Exec(
	srcVid VaultId, srcRid RecordId,
	dstVid VaultId, dstRid RecordId,
	hint RecordHint,
	f func([]byte) ([]byte, error),
) error {
	var newSecret []byte
	err := v.GetGuard(srcVid, srcRid, func(pt []byte) error {
		out, ferr := f(pt)
		if ferr != nil {
			return ferr
		}
		newSecret = out
		return nil
	})
	if err != nil {
		return err
	}
	defer zeroSlice(newSecret)
	return v.Write(dstVid, dstRid, newSecret, hint)
}

// ContainsRecord reports whether a live record exists at (vid, rid).
func (v *Vault) ContainsRecord(vid VaultId, rid RecordId) bool {
	_, err := v.lookup(vid, rid)
	return err == nil
}

// Revoke flips the record's tombstone flag. Idempotent; a no-op if the
// record does not exist.
func (v *Vault) Revoke(vid VaultId, rid RecordId) {
	if vaultMap, ok := v.db[vid]; ok {
		if rec, ok := vaultMap[rid]; ok {
			rec.Alive = false
		}
	}
}

// GC drops all tombstoned records in vid. Does not alter the observable
// behavior of live records.
func (v *Vault) GC(vid VaultId) {
	vaultMap, ok := v.db[vid]
	if !ok {
		return
	}
	for rid, rec := range vaultMap {
		if !rec.Alive {
			delete(vaultMap, rid)
		}
	}
}

// Keys returns the vault's KeyStore, for callers (snapshot, client) that
// need to export or restore it.
func (v *Vault) Keys() *KeyStore {
	return v.keys
}

// DB returns the underlying VaultId → RecordId → Record map. Records are
// already AEAD-ciphertext, so exposing this map for serialization does not
// leak plaintext.
func (v *Vault) DB() map[VaultId]map[RecordId]*Record {
	return v.db
}

// RestoreVault reconstructs a Vault from a previously-exported KeyStore and
// record map, e.g. after decrypting a snapshot's per-client state.
func RestoreVault(keys *KeyStore, db map[VaultId]map[RecordId]*Record) *Vault {
	if db == nil {
		db = make(map[VaultId]map[RecordId]*Record)
	}
	if keys == nil {
		keys = NewKeyStore()
	}
	return &Vault{keys: keys, db: db}
}

func (v *Vault) vaultMap(vid VaultId) map[RecordId]*Record {
	m, ok := v.db[vid]
	if !ok {
		m = make(map[RecordId]*Record)
		v.db[vid] = m
	}
	return m
}

func (v *Vault) lookup(vid VaultId, rid RecordId) (*Record, error) {
	vaultMap, ok := v.db[vid]
	if !ok {
		return nil, vaulterr.New(vaulterr.KindRecordNotFound, "vaultstore.vault.lookup",
			fmt.Errorf("vault %x not found", vid))
	}
	rec, ok := vaultMap[rid]
	if !ok || !rec.Alive {
		return nil, vaulterr.New(vaulterr.KindRecordNotFound, "vaultstore.vault.lookup",
			fmt.Errorf("record %x not found in vault %x", rid, vid))
	}
	return rec, nil
}

func encryptRecord(key *Key, plaintext []byte, hint RecordHint) (*Record, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "vaultstore.vault.write", err)
	}
	var ciphertext []byte
	err := key.Borrow(func(raw []byte) error {
		aead, err := chacha20poly1305.NewX(raw)
		if err != nil {
			return err
		}
		ciphertext = aead.Seal(nil, nonce[:], plaintext, nil)
		return nil
	})
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "vaultstore.vault.write", err)
	}
	return &Record{Nonce: nonce, Ciphertext: ciphertext, Hint: hint, Alive: true}, nil
}

func decryptRecord(key *Key, rec *Record) ([]byte, error) {
	var plaintext []byte
	err := key.Borrow(func(raw []byte) error {
		aead, err := chacha20poly1305.NewX(raw)
		if err != nil {
			return err
		}
		var openErr error
		plaintext, openErr = aead.Open(nil, rec.Nonce[:], rec.Ciphertext, nil)
		return openErr
	})
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindDecryption, "vaultstore.vault.read", err)
	}
	return plaintext, nil
}

func zeroSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
