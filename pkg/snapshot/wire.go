/*
Package snapshot implements the encrypted, multi-client, on-disk persistence
format for the vault core. A snapshot file holds every client's serialized
state: its keystore and record map, encrypted under an independently random
per-client key, plus its non-secret store bytes, which sit beside that
ciphertext without the per-client encryption. All of it is wrapped under one outer envelope
keyed by a caller-supplied master key (or a key fetched from a vault
Location).
*/
package snapshot

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/vault/pkg/vaultstore"
	"github.com/cuemby/vault/pkg/vaulterr"
)

// magic identifies a snapshot file; version is bumped whenever the wire
// format changes incompatibly.
var magic = [4]byte{'V', 'S', 'N', 'P'}

const currentVersion uint16 = 1

const (
	saltSize  = 32
	nonceSize = 24 // XChaCha20-Poly1305
	tagSize   = 16
)

// masterKeySize is the length of both the outer master key and every
// per-client inner key.
const masterKeySize = 32

// UseKey selects how write/read obtain the outer master key: either a
// literal key supplied by the caller, or a Location inside a vault that
// holds it.
type UseKey struct {
	Literal  []byte
	Location *vaultstore.Location
}

// LiteralKey builds a UseKey from a raw 32-byte key.
func LiteralKey(key []byte) UseKey {
	return UseKey{Literal: key}
}

// FromVault builds a UseKey that resolves the master key from a vault
// record at loc.
func FromVault(loc vaultstore.Location) UseKey {
	return UseKey{Location: &loc}
}

func (k UseKey) isLiteral() bool {
	return k.Literal != nil
}

// SnapshotPath is a resolved on-disk location for a snapshot file: either a
// name resolved under a caller-configured home directory, or an absolute
// path used verbatim. Write and Read take the resolved string (via String)
// so callers that already hold a plain path need not build one.
type SnapshotPath struct {
	path string
}

// Named resolves name under homeDir, the caller-configured snapshot home
// directory. name must be relative.
func Named(homeDir, name string) (SnapshotPath, error) {
	if filepath.IsAbs(name) {
		return SnapshotPath{}, vaulterr.New(vaulterr.KindInvalidInput, "snapshot.named",
			fmt.Errorf("name must be relative, got %q", name))
	}
	return SnapshotPath{path: filepath.Join(homeDir, name)}, nil
}

// FromAbsolutePath wraps an already-absolute path verbatim.
func FromAbsolutePath(path string) (SnapshotPath, error) {
	if !filepath.IsAbs(path) {
		return SnapshotPath{}, vaulterr.New(vaulterr.KindInvalidInput, "snapshot.from_absolute_path",
			fmt.Errorf("path must be absolute, got %q", path))
	}
	return SnapshotPath{path: path}, nil
}

// String returns the resolved filesystem path.
func (p SnapshotPath) String() string {
	return p.path
}
