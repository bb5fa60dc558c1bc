package snapshot

import (
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cuemby/vault/pkg/vaultstore"
	"github.com/cuemby/vault/pkg/vaulterr"
)

// KeyResolver is satisfied by *vaultstore.Vault. It lets Snapshot both
// resolve a UseKey's Location and persist per-client inner keys into the
// caller's own vault, without this package depending on Vault's full
// surface.
type KeyResolver interface {
	GetGuard(vid vaultstore.VaultId, rid vaultstore.RecordId, f func([]byte) error) error
	CreateKey(vid vaultstore.VaultId) error
	ContainsRecord(vid vaultstore.VaultId, rid vaultstore.RecordId) bool
	Write(vid vaultstore.VaultId, rid vaultstore.RecordId, plaintext []byte, hint vaultstore.RecordHint) error
}

// Snapshot holds the decoded outer envelope of a loaded snapshot file (or
// the pending state accumulated before a write). Per-client inner state is
// decrypted lazily by GetState.
type Snapshot struct {
	clients map[vaultstore.ClientId]fileEntry
}

// New returns an empty Snapshot, ready for AddData then Write.
func New() *Snapshot {
	return &Snapshot{clients: make(map[vaultstore.ClientId]fileEntry)}
}

// HasData reports whether clientID has an entry in this snapshot.
func (s *Snapshot) HasData(clientID vaultstore.ClientId) bool {
	_, ok := s.clients[clientID]
	return ok
}

// AddData serializes a client's keystore and record map, encrypts them
// under a freshly generated inner key, and records both the ciphertext and
// (via resolver) the inner key itself so it can be recovered on read.
// storeBytes is non-secret and travels in plaintext alongside the
// ciphertext.
func (s *Snapshot) AddData(
	clientID vaultstore.ClientId,
	keys *vaultstore.KeyStore,
	records map[vaultstore.VaultId]map[vaultstore.RecordId]*vaultstore.Record,
	storeBytes []byte,
	resolver KeyResolver,
) error {
	rawKeys, err := keys.ExportRaw()
	if err != nil {
		return err
	}
	defer func() {
		for _, b := range rawKeys {
			zero(b)
		}
	}()

	plain, err := encodeClientState(clientState{Keys: rawKeys, Records: records})
	if err != nil {
		return err
	}
	defer zero(plain)

	innerKey := make([]byte, masterKeySize)
	if _, err := io.ReadFull(rand.Reader, innerKey); err != nil {
		return vaulterr.New(vaulterr.KindIO, "snapshot.add_data", err)
	}
	defer zero(innerKey)

	aead, err := chacha20poly1305.NewX(innerKey)
	if err != nil {
		return vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.add_data", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return vaulterr.New(vaulterr.KindIO, "snapshot.add_data", err)
	}
	ciphertext := aead.Seal(nil, nonce[:], plain, nil)

	vid, rid := innerKeyLocation(clientID)
	if !resolver.ContainsRecord(vid, rid) {
		if err := ensureKey(resolver, vid); err != nil {
			return err
		}
	}
	if err := resolver.Write(vid, rid, innerKey, vaultstore.NewRecordHint("snapshot-inner-key")); err != nil {
		return vaulterr.New(vaulterr.KindIO, "snapshot.add_data", err)
	}

	s.clients[clientID] = fileEntry{
		InnerNonce:      nonce,
		InnerCiphertext: ciphertext,
		StoreBytes:      append([]byte(nil), storeBytes...),
	}
	return nil
}

// GetState decrypts clientID's state on demand, reconstructing its
// KeyStore and record map plus its non-secret store bytes. Decrypting one
// client never forces decrypting another.
func (s *Snapshot) GetState(clientID vaultstore.ClientId, resolver KeyResolver) (*vaultstore.KeyStore, map[vaultstore.VaultId]map[vaultstore.RecordId]*vaultstore.Record, []byte, error) {
	entry, ok := s.clients[clientID]
	if !ok {
		return nil, nil, nil, vaulterr.New(vaulterr.KindSnapshotKeyMissing, "snapshot.get_state",
			fmt.Errorf("no snapshot data for client"))
	}

	vid, rid := innerKeyLocation(clientID)
	var cs clientState
	err := resolver.GetGuard(vid, rid, func(innerKey []byte) error {
		aead, aerr := chacha20poly1305.NewX(innerKey)
		if aerr != nil {
			return aerr
		}
		plain, aerr := aead.Open(nil, entry.InnerNonce[:], entry.InnerCiphertext, nil)
		if aerr != nil {
			return aerr
		}
		defer zero(plain)
		var derr error
		cs, derr = decodeClientState(plain)
		return derr
	})
	if err != nil {
		return nil, nil, nil, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.get_state", err)
	}

	keys, err := vaultstore.ImportRaw(cs.Keys)
	if err != nil {
		return nil, nil, nil, err
	}
	return keys, cs.Records, append([]byte(nil), entry.StoreBytes...), nil
}

// Write encrypts the accumulated per-client entries under the outer master
// key (resolved from use via resolver) and writes the envelope atomically.
func (s *Snapshot) Write(path string, use UseKey, resolver KeyResolver) error {
	masterKey, err := resolveMasterKey(use, resolver)
	if err != nil {
		return err
	}
	defer zero(masterKey)

	body, err := encodeFileBody(fileBody{Clients: s.clients})
	if err != nil {
		return err
	}

	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return vaulterr.New(vaulterr.KindIO, "snapshot.write", err)
	}
	derivedKey, err := hkdf.Key(sha256.New, masterKey, salt[:], "vault-snapshot-outer-v1", masterKeySize)
	if err != nil {
		return vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.write", err)
	}

	aead, err := chacha20poly1305.NewX(derivedKey)
	if err != nil {
		return vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.write", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return vaulterr.New(vaulterr.KindIO, "snapshot.write", err)
	}
	sealed := aead.Seal(nil, nonce[:], body, nil)

	var out []byte
	out = append(out, magic[:]...)
	var versionBytes [2]byte
	versionBytes[0] = byte(currentVersion >> 8)
	versionBytes[1] = byte(currentVersion)
	out = append(out, versionBytes[:]...)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...) // ciphertext || tag, as produced by Seal

	return writeAtomic(path, out)
}

// Read decrypts the outer envelope at path and returns a Snapshot whose
// per-client state can be fetched lazily via GetState. use resolves the
// master key the same way as Write.
func Read(path string, use UseKey, resolver KeyResolver) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindIO, "snapshot.read", err)
	}
	minLen := 4 + 2 + saltSize + nonceSize + tagSize
	if len(raw) < minLen {
		return nil, vaulterr.New(vaulterr.KindInvalidFile, "snapshot.read", errBadEnvelope)
	}
	if [4]byte(raw[:4]) != magic {
		return nil, vaulterr.New(vaulterr.KindInvalidFile, "snapshot.read", errBadEnvelope)
	}
	version := uint16(raw[4])<<8 | uint16(raw[5])
	if version != currentVersion {
		return nil, vaulterr.New(vaulterr.KindUnsupportedVersion, "snapshot.read",
			fmt.Errorf("unsupported snapshot version")).
			WithFields(map[string]any{"expected": currentVersion, "found": version})
	}
	offset := 6
	salt := raw[offset : offset+saltSize]
	offset += saltSize
	nonce := raw[offset : offset+nonceSize]
	offset += nonceSize
	sealed := raw[offset:]

	masterKey, err := resolveMasterKey(use, resolver)
	if err != nil {
		return nil, err
	}
	defer zero(masterKey)

	derivedKey, err := hkdf.Key(sha256.New, masterKey, salt, "vault-snapshot-outer-v1", masterKeySize)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.read", err)
	}
	aead, err := chacha20poly1305.NewX(derivedKey)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.read", err)
	}
	body, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindCorruptedContent, "snapshot.read", err)
	}

	fb, err := decodeFileBody(body)
	if err != nil {
		return nil, err
	}
	return &Snapshot{clients: fb.Clients}, nil
}

func resolveMasterKey(use UseKey, resolver KeyResolver) ([]byte, error) {
	if use.isLiteral() {
		if len(use.Literal) != masterKeySize {
			return nil, vaulterr.New(vaulterr.KindInvalidFile, "snapshot.resolve_master_key",
				fmt.Errorf("master key must be %d bytes", masterKeySize))
		}
		return append([]byte(nil), use.Literal...), nil
	}
	if use.Location == nil {
		return nil, vaulterr.New(vaulterr.KindSnapshotKeyMissing, "snapshot.resolve_master_key",
			fmt.Errorf("UseKey has neither a literal key nor a location"))
	}
	vid, rid := use.Location.Resolve()
	var key []byte
	err := resolver.GetGuard(vid, rid, func(b []byte) error {
		key = append([]byte(nil), b...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func ensureKey(resolver KeyResolver, vid vaultstore.VaultId) error {
	if err := resolver.CreateKey(vid); err != nil {
		if vaulterr.IsKind(err, vaulterr.KindKeyAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vault-snapshot-*")
	if err != nil {
		return vaulterr.New(vaulterr.KindIO, "snapshot.write_atomic", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return vaulterr.New(vaulterr.KindIO, "snapshot.write_atomic", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return vaulterr.New(vaulterr.KindIO, "snapshot.write_atomic", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return vaulterr.New(vaulterr.KindIO, "snapshot.write_atomic", err)
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
