package memory

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cuemby/vault/pkg/vaulterr"
)

// File persists an AEAD-encrypted payload to a tempfile with a random name.
// Destroy unlinks the file after overwriting its contents with zeros.
type File struct {
	key  *Boxed
	path string
}

// NewFile encrypts payload under a freshly generated key and writes the
// result to a randomly-named file under dir (os.TempDir() if empty).
func NewFile(payload []byte, cfg Config, dir string) (*File, error) {
	if len(payload) == 0 {
		return nil, vaulterr.New(vaulterr.KindZeroSized, "memory.file.new", fmt.Errorf("empty payload"))
	}
	if cfg.Size != 0 && cfg.Size != len(payload) {
		return nil, vaulterr.New(vaulterr.KindSizeMismatch, "memory.file.new",
			fmt.Errorf("configured size %d does not match payload length %d", cfg.Size, len(payload)))
	}
	if dir == "" {
		dir = os.TempDir()
	}

	key := make([]byte, ramEncryptedKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "memory.file.new", err)
	}
	sealed, err := seal(key, payload)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, ".vault-"+uuid.NewString())
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return nil, vaulterr.New(vaulterr.KindFilesystemError, "memory.file.new", err)
	}

	keyBox, err := NewBoxed(len(key))
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if err := keyBox.Write(key); err != nil {
		keyBox.Destroy()
		_ = os.Remove(path)
		return nil, err
	}

	return &File{key: keyBox, path: path}, nil
}

// Lock re-encrypts payload under a fresh key, rewriting the backing file.
func (f *File) Lock(payload []byte) error {
	fresh, err := NewFile(payload, Config{Size: len(payload)}, filepath.Dir(f.path))
	if err != nil {
		return err
	}
	f.wipeFile()
	f.key.Destroy()
	f.key = fresh.key
	f.path = fresh.path
	return nil
}

// Unlock reads the file back and decrypts it into a fresh Buffer.
func (f *File) Unlock() (*Buffer, error) {
	var key []byte
	if err := f.key.Borrow(ReadOnly, func(b []byte) error {
		key = append([]byte(nil), b...)
		return nil
	}); err != nil {
		return nil, err
	}
	defer zero(key)

	sealed, err := os.ReadFile(f.path)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindFilesystemError, "memory.file.unlock", err)
	}

	plaintext, err := open(key, sealed)
	zero(sealed)
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)

	box, err := NewBoxed(len(plaintext))
	if err != nil {
		return nil, err
	}
	if err := box.Write(plaintext); err != nil {
		box.Destroy()
		return nil, err
	}
	return newBuffer(box), nil
}

// Destroy zeroes the backing file's contents, unlinks it, and destroys the
// key. Safe to call more than once.
func (f *File) Destroy() {
	f.wipeFile()
	f.key.Destroy()
}

func (f *File) wipeFile() {
	if f.path == "" {
		return
	}
	if info, err := os.Stat(f.path); err == nil {
		zeros := make([]byte, info.Size())
		_ = os.WriteFile(f.path, zeros, 0o600)
	}
	_ = os.Remove(f.path)
	f.path = ""
}
