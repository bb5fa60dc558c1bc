package memory

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cuemby/vault/pkg/vaulterr"
)

const ramEncryptedKeySize = 32 // AES-256

// RamEncrypted keeps an AEAD-encrypted copy of a payload in a Boxed region;
// Unlock decrypts it into a fresh Buffer. The construction is AES-256-GCM
// with the nonce prepended to the ciphertext (File uses the same scheme).
type RamEncrypted struct {
	key        *Boxed // ramEncryptedKeySize bytes
	ciphertext *Boxed // nonce || ciphertext || tag
}

// NewRamEncrypted encrypts payload under a freshly generated key and stores
// both in Boxed regions.
func NewRamEncrypted(payload []byte, cfg Config) (*RamEncrypted, error) {
	if len(payload) == 0 {
		return nil, vaulterr.New(vaulterr.KindZeroSized, "memory.ramencrypted.new", fmt.Errorf("empty payload"))
	}
	if cfg.Size != 0 && cfg.Size != len(payload) {
		return nil, vaulterr.New(vaulterr.KindSizeMismatch, "memory.ramencrypted.new",
			fmt.Errorf("configured size %d does not match payload length %d", cfg.Size, len(payload)))
	}

	key := make([]byte, ramEncryptedKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "memory.ramencrypted.new", err)
	}

	sealed, err := seal(key, payload)
	if err != nil {
		return nil, err
	}

	keyBox, err := NewBoxed(len(key))
	if err != nil {
		return nil, err
	}
	if err := keyBox.Write(key); err != nil {
		keyBox.Destroy()
		return nil, err
	}

	ctBox, err := NewBoxed(len(sealed))
	if err != nil {
		keyBox.Destroy()
		return nil, err
	}
	if err := ctBox.Write(sealed); err != nil {
		keyBox.Destroy()
		ctBox.Destroy()
		return nil, err
	}

	return &RamEncrypted{key: keyBox, ciphertext: ctBox}, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "memory.ramencrypted.seal", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "memory.ramencrypted.seal", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, vaulterr.New(vaulterr.KindEncryption, "memory.ramencrypted.seal", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindDecryption, "memory.ramencrypted.open", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindDecryption, "memory.ramencrypted.open", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, vaulterr.New(vaulterr.KindDecryption, "memory.ramencrypted.open", fmt.Errorf("ciphertext too short"))
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindDecryption, "memory.ramencrypted.open", err)
	}
	return plaintext, nil
}

// Lock re-encrypts payload under a fresh key, replacing the prior contents.
func (r *RamEncrypted) Lock(payload []byte) error {
	fresh, err := NewRamEncrypted(payload, Config{Size: len(payload)})
	if err != nil {
		return err
	}
	r.key.Destroy()
	r.ciphertext.Destroy()
	r.key = fresh.key
	r.ciphertext = fresh.ciphertext
	return nil
}

// Unlock decrypts the held payload into a fresh Buffer.
func (r *RamEncrypted) Unlock() (*Buffer, error) {
	var key, sealed []byte
	if err := r.key.Borrow(ReadOnly, func(b []byte) error {
		key = append([]byte(nil), b...)
		return nil
	}); err != nil {
		return nil, err
	}
	defer zero(key)

	if err := r.ciphertext.Borrow(ReadOnly, func(b []byte) error {
		sealed = append([]byte(nil), b...)
		return nil
	}); err != nil {
		return nil, err
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

// Destroy zeroizes both the key and the ciphertext regions.
func (r *RamEncrypted) Destroy() {
	r.key.Destroy()
	r.ciphertext.Destroy()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
